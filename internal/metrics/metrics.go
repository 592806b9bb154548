// Package metrics records per-run unit counters and exports them in the
// Prometheus text format, for node_exporter's textfile collector.
package metrics

import (
	"fmt"

	"forkrun/internal/dispatch"

	"github.com/prometheus/client_golang/prometheus"
)

var _ dispatch.Observer = (*Recorder)(nil)

// Recorder implements dispatch.Observer on a private registry.
type Recorder struct {
	registry  *prometheus.Registry
	spawned   *prometheus.CounterVec
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.GaugeVec
	lastRun   *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		spawned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forkrun",
			Name:      "units_spawned_total",
			Help:      "Units created, by mode.",
		}, []string{"mode"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forkrun",
			Name:      "units_completed_total",
			Help:      "Units waited or joined, by mode.",
		}, []string{"mode"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forkrun",
			Name:      "units_exit_errors_total",
			Help:      "Units that completed with a non-nil wait error, by mode.",
		}, []string{"mode"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "forkrun",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last completed run, by mode.",
		}, []string{"mode"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "forkrun",
			Name:      "run_info",
			Help:      "Identifier of the last completed run.",
		}, []string{"mode", "run_id"}),
	}
	r.registry.MustRegister(r.spawned, r.completed, r.failed, r.duration, r.lastRun)
	return r
}

func (r *Recorder) UnitSpawned(mode dispatch.Mode, _ int) {
	r.spawned.WithLabelValues(mode.String()).Inc()
}

func (r *Recorder) UnitCompleted(mode dispatch.Mode, _ int, err error) {
	r.completed.WithLabelValues(mode.String()).Inc()
	if err != nil {
		r.failed.WithLabelValues(mode.String()).Inc()
	}
}

func (r *Recorder) RunCompleted(summary dispatch.Summary) {
	r.duration.WithLabelValues(summary.Mode.String()).Set(summary.Duration.Seconds())
	r.lastRun.Reset()
	r.lastRun.WithLabelValues(summary.Mode.String(), summary.RunID).Set(1)
}

// WriteTextfile atomically writes the current metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
