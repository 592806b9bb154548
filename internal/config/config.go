package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"forkrun/internal/task"

	"github.com/spf13/viper"
)

const (
	KeySleep              = "sleep"
	KeyLogLevel           = "log-level"
	KeyKeepLog            = "keep-log"
	KeyMetricsFile        = "metrics-file"
	KeyMaxThreads         = "max-threads"
	KeyGenerateTests      = "helpers.generate-tests"
	KeyGenerateTestsArgs  = "helpers.generate-tests-args"
	KeyGenerateDeploy     = "helpers.generate-deploy"
	KeyGenerateDeployArgs = "helpers.generate-deploy-args"
)

const (
	DefaultSleep                = task.DefaultSleep
	DefaultGenerateTestsHelper  = "./scripts/generate_tests.sh"
	DefaultGenerateDeployHelper = "./scripts/generate_deploy.sh"
)

// Settings are the resolved, flag-independent values of a run.
type Settings struct {
	Sleep       time.Duration
	LogLevel    string
	KeepLog     bool
	MetricsFile string
	// MaxThreads caps live thread-mode units; zero derives it from the
	// runtime thread limit.
	MaxThreads int
	Helpers    task.Helpers
}

// Load resolves Settings from v.
func Load(v *viper.Viper) (*Settings, error) {
	sleep, err := ParseSleep(v.GetString(KeySleep))
	if err != nil {
		return nil, err
	}

	maxThreads := v.GetInt(KeyMaxThreads)
	if maxThreads < 0 {
		return nil, fmt.Errorf("max-threads must not be negative, got %d", maxThreads)
	}

	return &Settings{
		Sleep:       sleep,
		LogLevel:    strings.TrimSpace(v.GetString(KeyLogLevel)),
		KeepLog:     v.GetBool(KeyKeepLog),
		MetricsFile: strings.TrimSpace(v.GetString(KeyMetricsFile)),
		MaxThreads:  maxThreads,
		Helpers: task.Helpers{
			task.ActionGenerateTests:  helperArgv(v.GetString(KeyGenerateTests), v.GetStringSlice(KeyGenerateTestsArgs)),
			task.ActionGenerateDeploy: helperArgv(v.GetString(KeyGenerateDeploy), v.GetStringSlice(KeyGenerateDeployArgs)),
		},
	}, nil
}

// ParseSleep accepts a Go duration ("1500ms") or a bare number of seconds.
// The duration must be positive; empty means DefaultSleep.
func ParseSleep(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSleep, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		seconds, convErr := strconv.ParseFloat(raw, 64)
		if convErr != nil || math.IsNaN(seconds) {
			return 0, fmt.Errorf("invalid sleep duration %q", raw)
		}
		if seconds > maxSleepSeconds || seconds < -maxSleepSeconds {
			return 0, fmt.Errorf("sleep duration %q is out of range", raw)
		}
		d = time.Duration(seconds * float64(time.Second))
	}
	if d <= 0 {
		return 0, fmt.Errorf("sleep duration must be positive, got %s", raw)
	}
	return d, nil
}

const maxSleepSeconds = float64(math.MaxInt64) / float64(time.Second)

func helperArgv(command string, args []string) []string {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	argv := []string{command}
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			argv = append(argv, arg)
		}
	}
	return argv
}
