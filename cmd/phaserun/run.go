package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nomis52/phasetest/config"
	"github.com/nomis52/phasetest/logging"
	"github.com/nomis52/phasetest/metrics"
	"github.com/nomis52/phasetest/report"
	"github.com/nomis52/phasetest/runner"
	"github.com/nomis52/phasetest/suites"
)

type runFlags struct {
	reverseOrder bool
	filter       string
	captureLogs  bool
	pushURL      string
	messages     bool
	color        bool
}

func newRunCmd(catalog *suites.Catalog) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [group...]",
		Short: "Run test groups and report their verdicts",
		Long: `Run the named test groups, or every known one, one after the other.
The exit code is 1 when a test failed and 2 when a run could not be
set up or was aborted.`,
		Example: `  phaserun run arithmetic strings
  phaserun run --run '^TestAdd$' --messages arithmetic
  phaserun run -c phaserun.yaml --push-url http://victoriametrics:8428`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroups(cmd, catalog, args, f)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&f.reverseOrder, "reverse-order", false, "Run test cases in descending name order")
	flags.StringVar(&f.filter, "run", "", "Only run test cases whose name matches this regular expression")
	flags.BoolVar(&f.captureLogs, "capture-logs", false, "Capture what every test case logs")
	flags.StringVar(&f.pushURL, "push-url", "", "Push run metrics to this remote write endpoint")
	flags.BoolVar(&f.messages, "messages", false, "Show the result message of every row")
	flags.BoolVar(&f.color, "color", false, "Color the report by its overall status")
	return cmd
}

func runGroups(cmd *cobra.Command, catalog *suites.Catalog, names []string, f runFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names = namesOrAll(catalog, names)
	groups, err := catalog.Groups(names...)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if f.pushURL != "" {
		cfg.Monitoring.PushURL = f.pushURL
	}
	opts := []runner.Option{runner.WithLogCapture(cfg.Run.CaptureLogs || f.captureLogs)}
	var runMetrics *metrics.RunMetrics
	if cfg.Monitoring.PushURL != "" {
		if runMetrics, err = newPushMetrics(cfg.Monitoring, logger); err != nil {
			return err
		}
		opts = append(opts, runner.WithObserver(runMetrics), runner.WithVariantRecorder(runMetrics))
	}
	r := newRunner(cfg, logger, cmd.ErrOrStderr(), cmd.OutOrStdout(), opts...)

	runArgs := slices.Clone(cfg.Run.Args)
	if f.reverseOrder {
		runArgs = append(runArgs, "--reverse-order")
	}
	if f.filter != "" {
		runArgs = append(runArgs, "--run", f.filter)
	}

	var outcomes []*runner.Outcome
	var errs []error
	for _, group := range groups {
		out, err := r.Run(group, runArgs...)
		if out != nil {
			outcomes = append(outcomes, out)
			if runMetrics != nil {
				runMetrics.RecordRun(out.Group, out.Result, out.Err)
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	opt := report.Options{Color: f.color, Messages: f.messages}
	if err := report.WriteWith(cmd.OutOrStdout(), opt, outcomes...); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	var failed []string
	for _, out := range outcomes {
		if !out.Result.IsOK() {
			failed = append(failed, out.Group)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", errTestsFailed, strings.Join(failed, ", "))
	}
	return nil
}

// newLogger builds the logger from the logging config. Standard error is
// taken as w so commands can be captured.
func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stderr" {
		h, err := logging.NewHandler(cfg.Logging, w)
		if err != nil {
			return nil, err
		}
		return slog.New(h), nil
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Logger, nil
}

func newRunner(cfg config.Config, logger *slog.Logger, log, ref io.Writer, opts ...runner.Option) *runner.Runner {
	return runner.New(append([]runner.Option{
		runner.WithLogger(logger),
		runner.WithStreams(log, ref),
		runner.WithLoggingConfig(cfg.Logging),
		runner.WithReverseOrder(cfg.Run.ReverseOrder),
	}, opts...)...)
}

func newPushMetrics(cfg config.MonitoringConfig, logger *slog.Logger) (*metrics.RunMetrics, error) {
	instance := cfg.Instance
	if instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to get hostname: %w", err)
		}
		instance = hostname
	}

	registry := metrics.NewPushRegistry(metrics.PushConfig{
		URL:      cfg.PushURL,
		Prefix:   cfg.MetricsPrefix,
		Job:      cfg.JobName,
		Instance: instance,
		Timeout:  cfg.PushTimeout,
		Logger:   logger,
	})
	return metrics.NewRunMetrics(registry)
}
