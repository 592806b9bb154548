package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	config "forkrun/internal/config"
	"forkrun/internal/dispatch"
	"forkrun/internal/logger"
	"forkrun/internal/metrics"
	"forkrun/internal/task"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var version = "dev"

const usageLine = "forkrun <process|thread> [flags] <count> | forkrun <process|thread> [flags] [--] <command> [args...]"

var integerToken = regexp.MustCompile(`^[+-]?[0-9]+$`)

type cliOptions struct {
	Action      string
	Actions     string
	Units       int
	Sleep       string
	ConfigFile  string
	MetricsFile string
	LogLevel    string
	KeepLog     bool
	MaxThreads  int
}

// invocation is a validated command line.
type invocation struct {
	Mode     dispatch.Mode
	Count    int
	Selector dispatch.Selector
	Command  []string
}

// Run is the program entrypoint for cmd/forkrun/main.go.
func Run() {
	exitFn(run(os.Args[1:]))
}

func run(argv []string) int {
	if spec, ok, err := dispatch.UnitSpecFromEnv(); ok {
		return runUnit(spec, err)
	}

	if argv == nil {
		// cobra falls back to os.Args for nil.
		argv = []string{}
	}
	cmd := newRootCommand()
	routeSubcommands(cmd, argv)
	cmd.SetArgs(argv)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitInternal
	}
	return exitOK
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   usageLine,
		Short: "Run N units of work as OS processes or OS threads and wait for all of them",
		Long: `forkrun spawns a number of units and blocks until every one has finished.

Modes (first argument):
  process, process-mode, fork, --mode=process, --mode=fork
  thread, thread-mode, --mode=thread

A single integer after the flags runs that many units of --action/--actions.
Anything else is a command executed once per unit (--units times).

Exit codes: 0 ok, 1 internal error, 2 usage, 3 non-positive count,
4 unrecognized mode, 5 unit creation failed.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		// The mode selector may itself look like a flag (--mode=fork), so
		// flags are parsed by hand after it.
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := parseInvocation(cmd, args, opts)
			if err != nil {
				return reportUsage(err)
			}
			if inv == nil {
				return cmd.Help()
			}

			v, err := config.NewViper(opts.ConfigFile)
			if err != nil {
				fmt.Fprintf(stderr, "ERROR: %v\n", err)
				return exitError{code: exitInternal}
			}
			settings, err := resolveSettings(cmd.Flags(), opts, v)
			if err != nil {
				return reportUsage(newUsageError(exitUsage, "%v", err))
			}

			exitCode := runWithLoggerAndCleanup(settings, func() int {
				logger.LogInfo(fmt.Sprintf("Parsed args: mode=%s, count=%d, command_len=%d", inv.Mode, inv.Count, len(inv.Command)))
				return runDispatch(inv, settings)
			})
			if exitCode == 0 {
				return nil
			}
			return exitError{code: exitCode}
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	addRootFlags(cmd.Flags(), opts)
	cmd.AddCommand(newVersionCommand(), newCleanupCommand())

	return cmd
}

// routeSubcommands keeps subcommands only when argv starts with one (or with
// a help request). Otherwise cobra would find "version" in
// "forkrun --mode=fork version" and run it instead of the command.
func routeSubcommands(cmd *cobra.Command, argv []string) {
	if len(argv) > 0 && isHelpToken(argv[0]) {
		return
	}
	subs := cmd.Commands()
	for _, sub := range subs {
		if len(argv) > 0 && sub.Name() == argv[0] {
			return
		}
	}
	cmd.RemoveCommand(append([]*cobra.Command(nil), subs...)...)
}

func addRootFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.StringVar(&opts.Action, "action", task.ActionSleep.String(), "Action for every unit in count mode ("+strings.Join(task.Labels(), ", ")+")")
	fs.StringVar(&opts.Actions, "actions", "", "Comma separated per-unit actions, cycled over the units")
	fs.IntVar(&opts.Units, "units", 1, "Units to run in command mode")
	fs.StringVar(&opts.Sleep, "sleep", "", "Duration of the sleep action (default 2s)")
	fs.StringVar(&opts.ConfigFile, "config", "", "Config file path (default: $HOME/.forkrun/config.*)")
	fs.StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.KeepLog, "keep-log", false, "Keep the log file after the run")
	fs.IntVar(&opts.MaxThreads, "max-threads", 0, "Thread mode: most units alive at once (default: runtime thread limit minus headroom)")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version and exit",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(stdout, "%s version %s\n", logger.ToolName, version)
			return nil
		},
	}
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "cleanup",
		Short:         "Remove log files of processes that are no longer running",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := runCleanupMode(); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
}

func runCleanupMode() int {
	stats, err := logger.CleanupOldLogs()
	fmt.Fprintln(stdout, "Cleanup completed")
	fmt.Fprintf(stdout, "Files scanned: %d\n", stats.Scanned)
	fmt.Fprintf(stdout, "Files deleted: %d\n", stats.Deleted)
	fmt.Fprintf(stdout, "Files kept: %d\n", stats.Kept)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitInternal
	}
	return exitOK
}

func reportUsage(err error) error {
	var ue *usageError
	if !errors.As(err, &ue) {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitError{code: exitInternal}
	}
	fmt.Fprintf(stderr, "ERROR: %s\n", ue.msg)
	fmt.Fprintf(stderr, "Usage: %s\n", usageLine)
	return exitError{code: ue.code}
}

func isHelpToken(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}

// parseInvocation validates argv in order: mode, flags, count or command.
// A nil invocation with a nil error means help was requested.
func parseInvocation(cmd *cobra.Command, args []string, opts *cliOptions) (*invocation, error) {
	if len(args) == 0 {
		return nil, newUsageError(exitUsage, "mode and task count are required")
	}
	if isHelpToken(args[0]) {
		return nil, nil
	}

	mode, err := dispatch.ParseMode(args[0])
	if err != nil {
		return nil, newUsageError(exitUnknownMode, "%v", err)
	}

	fs := cmd.Flags()
	flagArgs, positional, forced := splitFlagArgs(fs, args[1:])
	if err := fs.Parse(flagArgs); err != nil {
		return nil, newUsageError(exitUsage, "%v", err)
	}

	// Flags may also follow a count: forkrun thread 3 --sleep 1s.
	if !forced && len(positional) > 1 && integerToken.MatchString(positional[0]) {
		if err := fs.Parse(positional[1:]); err != nil {
			return nil, newUsageError(exitUsage, "%v", err)
		}
		if extra := fs.Args(); len(extra) > 0 {
			return nil, newUsageError(exitUsage, "unexpected arguments after task count: %s", strings.Join(extra, " "))
		}
		positional = positional[:1]
	}

	if help, _ := fs.GetBool("help"); help {
		return nil, nil
	}
	if len(positional) == 0 {
		return nil, newUsageError(exitUsage, "task count or command is required")
	}

	inv := &invocation{Mode: mode}
	if !forced && len(positional) == 1 && integerToken.MatchString(positional[0]) {
		count, err := strconv.Atoi(positional[0])
		if err != nil || count <= 0 {
			return nil, newUsageError(exitBadCount, "task count must be a positive integer, got %q", positional[0])
		}
		if fs.Changed("units") {
			return nil, newUsageError(exitUsage, "--units only applies to command mode")
		}
		selector, err := actionSelector(fs, opts)
		if err != nil {
			return nil, newUsageError(exitUsage, "%v", err)
		}
		inv.Count = count
		inv.Selector = selector
		return inv, nil
	}

	if fs.Changed("action") || fs.Changed("actions") {
		return nil, newUsageError(exitUsage, "--action and --actions only apply to count mode")
	}
	if opts.Units <= 0 {
		return nil, newUsageError(exitBadCount, "--units must be a positive integer, got %d", opts.Units)
	}
	inv.Count = opts.Units
	inv.Command = append([]string(nil), positional...)
	inv.Selector = dispatch.Command(inv.Command)
	return inv, nil
}

// splitFlagArgs separates leading flags from the first positional argument.
// Negative numbers count as positionals so they reach count validation. The
// returned forced is true when "--" ended the flags.
func splitFlagArgs(fs *pflag.FlagSet, argv []string) (flags []string, positional []string, forced bool) {
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			return argv[:i], argv[i+1:], true
		case arg == "-" || !strings.HasPrefix(arg, "-") || integerToken.MatchString(arg):
			return argv[:i], argv[i:], false
		case strings.HasPrefix(arg, "--"):
			name, _, hasValue := strings.Cut(arg[2:], "=")
			if f := fs.Lookup(name); f != nil && !hasValue && f.NoOptDefVal == "" {
				i++
			}
		default:
			short := arg[1:]
			if len(short) == 1 {
				if f := fs.ShorthandLookup(short); f != nil && f.NoOptDefVal == "" {
					i++
				}
			}
		}
	}
	return argv, nil, false
}

func actionSelector(fs *pflag.FlagSet, opts *cliOptions) (dispatch.Selector, error) {
	if fs.Changed("actions") {
		actions, err := task.ParseActionList(opts.Actions)
		if err != nil {
			return nil, err
		}
		return dispatch.Cycle(actions), nil
	}
	return dispatch.Fixed(task.ParseAction(opts.Action)), nil
}

// resolveSettings applies explicit flags on top of config file and
// environment values.
func resolveSettings(fs *pflag.FlagSet, opts *cliOptions, v *viper.Viper) (*config.Settings, error) {
	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if fs.Changed("sleep") {
		sleep, err := config.ParseSleep(opts.Sleep)
		if err != nil {
			return nil, err
		}
		settings.Sleep = sleep
	}
	if fs.Changed("log-level") {
		settings.LogLevel = strings.TrimSpace(opts.LogLevel)
	}
	if _, err := logger.ParseLevel(settings.LogLevel); err != nil {
		return nil, err
	}
	if fs.Changed("keep-log") {
		settings.KeepLog = opts.KeepLog
	}
	if fs.Changed("max-threads") {
		if opts.MaxThreads < 0 {
			return nil, fmt.Errorf("--max-threads must not be negative, got %d", opts.MaxThreads)
		}
		settings.MaxThreads = opts.MaxThreads
	}
	if fs.Changed("metrics-file") {
		settings.MetricsFile = strings.TrimSpace(opts.MetricsFile)
	}
	return settings, nil
}

func runDispatch(inv *invocation, settings *config.Settings) int {
	substrate, err := newSubstrateFn(inv.Mode, settings)
	if err != nil {
		logger.LogError(err.Error())
		return exitInternal
	}

	var dispatchOpts []dispatch.Option
	var recorder *metrics.Recorder
	if settings.MetricsFile != "" {
		recorder = metrics.NewRecorder()
		dispatchOpts = append(dispatchOpts, dispatch.WithObserver(recorder))
	}

	selector := dispatch.Bind(inv.Selector, settings.Helpers, settings.Sleep)
	summary, err := dispatch.New(substrate, dispatchOpts...).Run(context.Background(), inv.Count, selector)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		var re *dispatch.ResourceError
		switch {
		case errors.As(err, &re):
			return exitSpawnFailure
		case errors.Is(err, dispatch.ErrNonPositiveCount):
			return exitBadCount
		default:
			logger.LogError(err.Error())
			return exitInternal
		}
	}

	if recorder != nil {
		if err := recorder.WriteTextfile(settings.MetricsFile); err != nil {
			logger.LogWarn(err.Error())
		}
	}
	logger.LogInfo(fmt.Sprintf("run %s finished: %d units in %s mode", summary.RunID, summary.Spawned, summary.Mode))
	return exitOK
}
