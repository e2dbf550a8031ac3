// Package runner is the entry point of phasetest: it discovers the test
// cases and annotations of a test group, wires the built-in and the
// annotation processors into a fresh group context and drives it through
// its life phases.
//
// # Usage
//
//	r := runner.New(runner.WithStreams(os.Stderr, os.Stdout))
//	outcome, err := r.Run(&ArithmeticTests{}, "--reverse-order")
//	if err != nil {
//		// fatal: a broken context, a dependency cycle, a group phase fault
//	}
//	fmt.Println(outcome.Result) // "Passed. test cases: 3; all passed"
//
// The package level Run, RunStreams and RunWithProcessors functions are
// shorthands returning only the verdict.
package runner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nomis52/phasetest/discovery"
	"github.com/nomis52/phasetest/engine"
	"github.com/nomis52/phasetest/logging"
	"github.com/nomis52/phasetest/processors"
	"github.com/nomis52/phasetest/result"
)

// SetupError reports a test group that could not be prepared for a run:
// its discovery failed, an annotation has no consumer or its processors
// cannot be registered together.
type SetupError struct {
	Group string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setting up test group %s: %v", e.Group, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Outcome is everything a run of one test group produced.
type Outcome struct {
	RunID    string
	Group    string
	Result   result.TestResult
	Cases    []engine.CaseExecution
	Started  time.Time
	Duration time.Duration
	// Logs holds the records each test case logged, when log capture is on.
	Logs map[string][]logging.LogEntry
	// Err is the fatal error that aborted the run. Result is then a failure
	// carrying its message.
	Err error
}

// Runner runs test groups. A Runner holds no per-run state and may be used
// by several goroutines at once.
type Runner struct {
	base      *slog.Logger
	logger    *slog.Logger
	log       io.Writer
	ref       io.Writer
	logConfig logging.Config

	groupProcs func() []engine.GroupProcessor
	caseProcs  func() []engine.CaseProcessor
	observers  []engine.Observer
	recorder   processors.VariantRecorder

	reverseOrder bool
	captureLogs  bool
	scanner      *discovery.Scanner
	bindings     Bindings
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used outside of test group runs and as the
// group logger until the logging-init phase replaced it.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.base = logger
		r.logger = logger.With("component", "runner")
	}
}

// WithStreams sets the log stream and the reference output stream.
// Defaults to standard error and standard output.
func WithStreams(log, ref io.Writer) Option {
	return func(r *Runner) {
		r.log = log
		r.ref = ref
	}
}

// WithLoggingConfig configures the group logger installed in the
// logging-init phase.
func WithLoggingConfig(cfg logging.Config) Option {
	return func(r *Runner) {
		r.logConfig = cfg
	}
}

// WithGroupProcessors adds processors to every test group run, besides the
// built-in ones. The function is called once per run.
func WithGroupProcessors(procs func() []engine.GroupProcessor) Option {
	return func(r *Runner) {
		r.groupProcs = procs
	}
}

// WithCaseProcessors adds processors to every test case, besides the
// built-in ones. The function is called once per run and the processors it
// returns are shared by the test cases of that run.
func WithCaseProcessors(procs func() []engine.CaseProcessor) Option {
	return func(r *Runner) {
		r.caseProcs = procs
	}
}

// WithObserver adds an observer receiving the engine events of every run.
func WithObserver(o engine.Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, o)
	}
}

// WithVariantRecorder reports the verdict of every test case variant.
func WithVariantRecorder(rec processors.VariantRecorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithReverseOrder runs test cases in descending name order. The
// --reverse-order run argument overrides it.
func WithReverseOrder(reverse bool) Option {
	return func(r *Runner) {
		r.reverseOrder = reverse
	}
}

// WithLogCapture captures what every test case logs into Outcome.Logs.
func WithLogCapture(capture bool) Option {
	return func(r *Runner) {
		r.captureLogs = capture
	}
}

// WithScanner sets the scanner whose cache is shared by every run.
func WithScanner(s *discovery.Scanner) Option {
	return func(r *Runner) {
		r.scanner = s
	}
}

// WithBindings replaces the annotation bindings.
func WithBindings(b Bindings) Option {
	return func(r *Runner) {
		r.bindings = b
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		base:     slog.Default(),
		logger:   slog.Default().With("component", "runner"),
		log:      os.Stderr,
		ref:      os.Stdout,
		bindings: DefaultBindings(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.scanner == nil {
		r.scanner = discovery.NewScanner(discovery.WithLogger(r.base))
	}
	return r
}

// Run runs the test group value group with the run arguments args.
//
// A setup failure is returned as a *SetupError without an Outcome. A fatal
// error during the run is returned together with an Outcome whose Err is set.
// The log and reference streams are flushed whatever happens.
func (r *Runner) Run(group any, args ...string) (*Outcome, error) {
	defer r.flush()

	g, err := r.prepare(group, uuid.NewString(), args)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		RunID:   g.ctx.RunID(),
		Group:   g.ctx.Name(),
		Started: time.Now(),
	}
	res, err := g.ctx.Run()
	out.Duration = time.Since(out.Started)
	out.Cases = g.ctx.Executions()
	if g.collector != nil {
		out.Logs = g.collector.GetAllLogs()
	}

	if err != nil {
		r.logger.Error("test group run aborted", "test_group", out.Group, "run_id", out.RunID, "error", err)
		out.Err = err
		out.Result = result.Failed(err.Error())
		return out, err
	}
	out.Result = res
	r.logger.Info("test group run finished",
		"test_group", out.Group,
		"run_id", out.RunID,
		"status", res.Status(),
		"duration", out.Duration)
	return out, nil
}

// Validate prepares a run of group without running it: the test group is
// discovered, its annotations bound and every processor registered on the
// group and on each test case.
func (r *Runner) Validate(group any) error {
	g, err := r.prepare(group, "", nil)
	if err != nil {
		return err
	}
	for _, c := range g.st.Cases {
		if _, err := g.ctx.NewCase(c.Name, c.Bind(group)); err != nil {
			return &SetupError{Group: g.st.Name, Err: err}
		}
	}
	return nil
}

// RunAll runs every test group in turn. Fatal errors do not stop the
// remaining groups; they are joined into the returned error.
func (r *Runner) RunAll(groups ...any) ([]*Outcome, error) {
	var outcomes []*Outcome
	var errs []error
	for _, group := range groups {
		out, err := r.Run(group)
		if out != nil {
			outcomes = append(outcomes, out)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return outcomes, errors.Join(errs...)
}

type prepared struct {
	st        *discovery.Structure
	ctx       *engine.GroupContext
	collector *logging.LogCollector
}

func (r *Runner) prepare(group any, runID string, args []string) (*prepared, error) {
	st, err := r.scanner.Scan(group)
	if err != nil {
		return nil, &SetupError{Group: fmt.Sprintf("%T", group), Err: err}
	}
	p, err := newPlan(st, r.bindings)
	if err != nil {
		return nil, &SetupError{Group: st.Name, Err: err}
	}

	caseProcs := r.builtinCaseProcessors()
	setup := func(c *engine.CaseContext) error {
		for _, proc := range slices.Concat(caseProcs, p.forCase(c.Name())) {
			if err := c.Register(proc); err != nil {
				return err
			}
		}
		return nil
	}

	opts := []engine.GroupOption{
		engine.WithRunID(runID),
		engine.WithArgs(args...),
		engine.WithStreams(r.log, r.ref),
		engine.WithLogger(r.base),
		engine.WithCaseSetup(setup),
		engine.WithReverseOrder(r.reverseOrder),
	}
	if len(r.observers) > 0 {
		opts = append(opts, engine.WithObserver(engine.Observers(r.observers)))
	}
	var collector *logging.LogCollector
	if r.captureLogs {
		collector = logging.NewLogCollector()
		opts = append(opts, engine.WithLoggerHook(logging.NewCapturingLoggerHook(collector)))
	}

	ctx := engine.NewGroupContext(st.Name, group, opts...)
	for _, proc := range slices.Concat(r.builtinGroupProcessors(st), p.group) {
		if err := ctx.Register(proc); err != nil {
			return nil, &SetupError{Group: st.Name, Err: err}
		}
	}
	return &prepared{st: st, ctx: ctx, collector: collector}, nil
}

func (r *Runner) builtinGroupProcessors(st *discovery.Structure) []engine.GroupProcessor {
	procs := []engine.GroupProcessor{
		&processors.LoggingInit{Config: r.logConfig},
		&processors.ArgumentParser{},
		&processors.BeforeGroupHook{},
		&processors.CaseAdder{Structure: st},
		&processors.CaseFilter{},
		&processors.CaseRunner{},
		&processors.AfterGroupHook{},
	}
	if r.groupProcs != nil {
		procs = append(procs, r.groupProcs()...)
	}
	return procs
}

func (r *Runner) builtinCaseProcessors() []engine.CaseProcessor {
	procs := []engine.CaseProcessor{
		&processors.BeforeCaseHook{},
		&processors.DefaultTarget{},
		&processors.Invoker{},
		&processors.Classifier{},
		&processors.AfterCaseHook{},
	}
	if r.recorder != nil {
		procs = append(procs, &processors.CaseMetrics{Recorder: r.recorder})
	}
	if r.caseProcs != nil {
		procs = append(procs, r.caseProcs()...)
	}
	return procs
}

func (r *Runner) flush() {
	for _, w := range []io.Writer{r.log, r.ref} {
		if err := flush(w); err != nil {
			r.logger.Warn("flushing stream failed", "error", err)
		}
	}
}

func flush(w io.Writer) error {
	switch s := w.(type) {
	case interface{ Flush() error }:
		return s.Flush()
	case interface{ Flush() }:
		s.Flush()
	case *os.File:
		// Sync fails on pipes and terminals; those need no flushing.
		_ = s.Sync()
	}
	return nil
}

// Run runs group with the default runner, logging to standard error and
// writing reference output to standard output.
func Run(group any, args ...string) (result.TestResult, error) {
	return RunStreams(group, os.Stderr, os.Stdout, args...)
}

// RunStreams runs group writing to the given log and reference streams.
func RunStreams(group any, log, ref io.Writer, args ...string) (result.TestResult, error) {
	return RunWithProcessors(group, log, ref, nil, nil, args...)
}

// RunWithProcessors runs group with extra processors on the group and on
// every test case.
func RunWithProcessors(group any, log, ref io.Writer, groupProcs []engine.GroupProcessor, caseProcs []engine.CaseProcessor, args ...string) (result.TestResult, error) {
	r := New(
		WithStreams(log, ref),
		WithGroupProcessors(func() []engine.GroupProcessor { return groupProcs }),
		WithCaseProcessors(func() []engine.CaseProcessor { return caseProcs }),
	)
	out, err := r.Run(group, args...)
	if err != nil {
		return result.Failed(err.Error()), err
	}
	return out.Result, nil
}
