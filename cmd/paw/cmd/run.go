package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/paw/internal/config"
	"github.com/psantana5/paw/internal/observe"
	"github.com/psantana5/paw/internal/report"
	"github.com/psantana5/paw/internal/shutdown"
	"github.com/psantana5/paw/internal/tracing"
	"github.com/psantana5/paw/pkg/logging"
	"github.com/psantana5/paw/pkg/watch"
)

var (
	runInterval    time.Duration
	runTimeout     time.Duration
	runGrace       time.Duration
	runProfile     string
	runStream      bool
	runStdoutFile  string
	runMetricsAddr string
	runMetricsFile string
	runRecent      int
	runWorkDir     string
	runOTLP        string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a command and sample it until it exits",
	Long: `Run spawns the command, samples its memory and CPU usage every interval
and captures its standard output. Stderr passes straight through.

When the command exits paw prints the captured output and a summary of
the samples, then exits with the command's exit code.

Example:
  paw run -- make -j4
  paw run --interval 250ms --stream -- ./bench.sh
  paw run --timeout 30m --grace 10s --metrics-addr :9464 -- ffmpeg -i in.mp4 out.mp4
  paw run --profile build`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVarP(&runInterval, "interval", "i", 500*time.Millisecond, "Sampling interval")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Terminate the command after this long (0=never)")
	runCmd.Flags().DurationVar(&runGrace, "grace", 5*time.Second, "Delay between SIGTERM and SIGKILL on timeout")
	runCmd.Flags().StringVarP(&runProfile, "profile", "p", "", "Run a saved profile instead of a command line")
	runCmd.Flags().BoolVar(&runStream, "stream", false, "Print every sample as a JSON line while the command runs")
	runCmd.Flags().StringVar(&runStdoutFile, "stdout-file", "", "Write the captured output to this file instead of printing it")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics and recent samples on this address while running")
	runCmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "Write final metrics to this file in Prometheus text format")
	runCmd.Flags().IntVar(&runRecent, "recent", 10, "Number of recent samples to keep for the report")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", "", "Working directory for the command")
	runCmd.Flags().StringVar(&runOTLP, "otlp-endpoint", "", "Export a trace of the watch to this OTLP/HTTP collector (host:port)")

	viper.BindPFlag("interval", runCmd.Flags().Lookup("interval"))
	viper.BindPFlag("grace", runCmd.Flags().Lookup("grace"))
	viper.BindPFlag("metrics_addr", runCmd.Flags().Lookup("metrics-addr"))
	viper.BindPFlag("metrics_file", runCmd.Flags().Lookup("metrics-file"))
	viper.BindPFlag("otlp_endpoint", runCmd.Flags().Lookup("otlp-endpoint"))
}

// runPlan is everything needed to start one watch
type runPlan struct {
	profile string
	spec    *watch.Spec
	timeout time.Duration
	grace   time.Duration
	dir     string
	env     []string
}

// planRun resolves a command line or a profile into a runPlan. Flags that
// were set explicitly override the profile.
func planRun(cmd *cobra.Command, args []string) (*runPlan, error) {
	interval := viper.GetDuration("interval")
	plan := &runPlan{
		timeout: runTimeout,
		grace:   viper.GetDuration("grace"),
		dir:     runWorkDir,
	}

	if runProfile == "" {
		if len(args) == 0 {
			return nil, fmt.Errorf("no command specified")
		}
		spec, err := watch.NewSpec(args[0], args[1:], interval)
		if err != nil {
			return nil, err
		}
		plan.spec = spec
		return plan, nil
	}

	if len(args) > 0 {
		return nil, fmt.Errorf("--profile and a command line are mutually exclusive")
	}

	path := profilesPath()
	profiles, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	profile, err := profiles.Profile(runProfile)
	if err != nil {
		return nil, err
	}

	plan.profile = profile.Name
	plan.spec = profile.Spec
	plan.env = inheritEnv(profile.Env)
	if !cmd.Flags().Changed("workdir") {
		plan.dir = profile.Dir
	}
	if !cmd.Flags().Changed("timeout") {
		plan.timeout = profile.Timeout
	}
	if !cmd.Flags().Changed("grace") && profile.Grace > 0 {
		plan.grace = profile.Grace
	}
	if cmd.Flags().Changed("interval") {
		spec, err := watch.NewSpec(profile.Spec.Command(), profile.Spec.Args(), interval)
		if err != nil {
			return nil, err
		}
		plan.spec = spec
	}

	return plan, nil
}

// inheritEnv layers a profile's variables over our own environment. Nil
// keeps the plain inherited environment.
func inheritEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}
	env := os.Environ()
	return append(env[:len(env):len(env)], extra...)
}

func runWatch(cmd *cobra.Command, args []string) error {
	plan, err := planRun(cmd, args)
	if err != nil {
		return err
	}

	format, err := parseFormat(viper.GetString("output"))
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}

	cleanup := shutdown.New(5*time.Second, logger)
	defer cleanup.Shutdown()
	cleanup.Register("log file", shutdown.CloseResource(logger))

	ctx := context.Background()
	endpoint := viper.GetString("otlp_endpoint")
	provider, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "paw",
		ServiceVersion: Version,
		OTLPEndpoint:   endpoint,
		Insecure:       true,
		SampleRatio:    viper.GetFloat64("trace_sample_ratio"),
		Enabled:        endpoint != "",
	}, logger)
	if err != nil {
		return err
	}

	cleanup.Register("tracer", provider.Shutdown)

	metrics := report.NewMetrics()
	recent := report.NewRecentSamples(runRecent)
	agg := report.NewAggregator()
	logger = logger.WithField("watch_id", agg.ID())

	if addr := viper.GetString("metrics_addr"); addr != "" {
		srv := report.NewServer(addr, metrics, recent, logger)
		if err := srv.Start(); err != nil {
			return err
		}
		cleanup.Register("metrics server", srv.Shutdown)
	}

	// The child shares our terminal; relay signals sent to paw alone.
	relay := newSignalRelay(logger)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()
	go relay.run(sigChan)

	out := cmd.OutOrStdout()
	deadline := observe.NewDeadline(plan.timeout, plan.grace)
	observer := newObserver(out, plan, agg, recent, metrics, deadline, relay, logger)

	w := watch.New(
		watch.WithLogger(logger),
		watch.WithTracer(provider.Tracer()),
		watch.WithStderr(cmd.ErrOrStderr()),
		watch.WithDir(plan.dir),
		watch.WithEnv(plan.env),
	)

	metrics.IncrStarted()
	outcome, err := w.Watch(plan.spec, observer)
	relay.release()
	if err != nil {
		metrics.RecordFailure(err)
		writeMetricsFile(metrics, logger)
		return err
	}

	summary := agg.Finish(outcome, deadline.Expired())
	metrics.RecordSummary(summary)
	summary.LogSummary(logger)
	writeMetricsFile(metrics, logger)

	result := &runResult{
		Profile: plan.profile,
		Summary: summary,
		Recent:  recent.GetRecent(0),
	}
	if runStdoutFile != "" {
		if err := os.WriteFile(runStdoutFile, []byte(outcome.Stdout), 0644); err != nil {
			return fmt.Errorf("failed to write stdout file: %w", err)
		}
	} else if format == formatTable {
		io.WriteString(out, outcome.Stdout)
	} else {
		result.Stdout = outcome.Stdout
	}

	if err := writeResult(out, format, result); err != nil {
		return err
	}

	return exitStatus(summary)
}

// newObserver fans one sample out to everything that consumes it
func newObserver(out io.Writer, plan *runPlan, agg *report.Aggregator, recent *report.RecentSamples,
	metrics *report.Metrics, deadline *observe.Deadline, relay *signalRelay, logger *logging.Logger) watch.Observer {

	var stream *json.Encoder
	if runStream {
		stream = json.NewEncoder(out)
	}

	return func(s watch.Sample) {
		relay.track(s.Process.PID)
		agg.Observe(s)
		recent.Record(s)
		metrics.ObserveSample(s)

		if stream != nil {
			if err := stream.Encode(s); err != nil {
				logger.Debug("Failed to stream sample", logging.Fields{"error": err.Error()})
			}
		}

		action, err := deadline.Check(s.Process.PID, time.Duration(s.Uptime)*time.Millisecond)
		if err != nil {
			logger.Error("Failed to signal child", logging.Fields{"action": action.String(), "error": err.Error()})
		} else if action != observe.ActionNone {
			logger.Warn("Timeout reached", logging.Fields{
				"action":  action.String(),
				"timeout": plan.timeout.String(),
				"pid":     s.Process.PID,
			})
		}
	}
}

func writeMetricsFile(metrics *report.Metrics, logger *logging.Logger) {
	path := viper.GetString("metrics_file")
	if path == "" {
		return
	}
	if err := report.WriteTextfile(path, metrics.Registry()); err != nil {
		logger.Error("Failed to write metrics file", logging.Fields{"path": path, "error": err.Error()})
	}
}

// exitStatus maps a finished watch to paw's own exit status: the child's
// exit code, or 1 when it has none.
func exitStatus(summary *report.Summary) error {
	switch {
	case summary.ExitCode != nil && *summary.ExitCode == 0:
		return nil
	case summary.ExitCode != nil:
		return &ExitError{Code: *summary.ExitCode}
	default:
		return &ExitError{Code: 1}
	}
}
