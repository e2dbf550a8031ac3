package engine

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"time"

	"github.com/nomis52/phasetest/logging"
	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
	"github.com/nomis52/phasetest/result"
)

// GroupProcessor is a processor bound to test group phases.
type GroupProcessor = processor.Processor[*GroupContext]

// CaseSetup prepares a freshly created test case context, typically by
// registering its processors. An error aborts the group run.
type CaseSetup func(c *CaseContext) error

// CaseExecution records how one test case of a group run ended.
type CaseExecution struct {
	Name     string
	Result   result.TestResult
	Duration time.Duration
	// Err is the fatal error that aborted the case, if any. The case is then
	// recorded as failed.
	Err error
}

// GroupContext is the state of one run of a test group.
type GroupContext struct {
	lifecycle[*GroupContext]

	runID string
	group any
	args  []string
	log   io.Writer
	ref   io.Writer

	reverseOrder bool
	pattern      *regexp.Regexp

	cases      map[string]*CaseContext
	caseSetup  CaseSetup
	executions []CaseExecution
	observer   Observer
	loggerHook logging.LoggerHook
}

// GroupOption configures a GroupContext.
type GroupOption func(*GroupContext)

// WithRunID sets the identifier of the run.
func WithRunID(id string) GroupOption {
	return func(g *GroupContext) {
		g.runID = id
	}
}

// WithArgs sets the raw run arguments.
func WithArgs(args ...string) GroupOption {
	return func(g *GroupContext) {
		g.args = slices.Clone(args)
	}
}

// WithStreams sets the log stream and the reference output stream.
func WithStreams(log, ref io.Writer) GroupOption {
	return func(g *GroupContext) {
		g.log = log
		g.ref = ref
	}
}

// WithLogger sets the logger the group starts with.
func WithLogger(logger *slog.Logger) GroupOption {
	return func(g *GroupContext) {
		g.logger = logger
	}
}

// WithLoggerHook sets the hook creating each test case's logger from the
// group logger, e.g. to capture what every test case logs.
func WithLoggerHook(hook logging.LoggerHook) GroupOption {
	return func(g *GroupContext) {
		g.loggerHook = hook
	}
}

// WithObserver sets the observer receiving engine events.
func WithObserver(o Observer) GroupOption {
	return func(g *GroupContext) {
		g.observer = o
	}
}

// WithCaseSetup sets the function preparing every new test case context.
func WithCaseSetup(setup CaseSetup) GroupOption {
	return func(g *GroupContext) {
		g.caseSetup = setup
	}
}

// WithReverseOrder runs test cases in descending name order.
func WithReverseOrder(reverse bool) GroupOption {
	return func(g *GroupContext) {
		g.reverseOrder = reverse
	}
}

// NewGroupContext creates the context of a run of the test group value
// group, named name.
func NewGroupContext(name string, group any, opts ...GroupOption) *GroupContext {
	g := &GroupContext{
		lifecycle: newLifecycle[*GroupContext](name, phase.GroupPhases(), result.GroupLevel, slog.Default()),
		group:     group,
		log:       io.Discard,
		ref:       io.Discard,
		cases:     make(map[string]*CaseContext),
		observer:  NopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "engine", "test_group", name)
	return g
}

// Name returns the test group name.
func (g *GroupContext) Name() string { return g.name }

// RunID returns the identifier of the run, if one was set.
func (g *GroupContext) RunID() string { return g.runID }

// Group returns the test group value.
func (g *GroupContext) Group() any { return g.group }

// Args returns a copy of the run arguments.
func (g *GroupContext) Args() []string { return slices.Clone(g.args) }

// Log returns the log stream.
func (g *GroupContext) Log() io.Writer { return g.log }

// Ref returns the reference output stream.
func (g *GroupContext) Ref() io.Writer { return g.ref }

// Logger returns the group's logger.
func (g *GroupContext) Logger() *slog.Logger { return g.logger }

// SetLogger replaces the group's logger. Test cases created afterwards
// derive their loggers from it.
func (g *GroupContext) SetLogger(logger *slog.Logger) {
	g.logger = logger.With("test_group", g.name)
}

// Observer returns the observer receiving engine events.
func (g *GroupContext) Observer() Observer { return g.observer }

// ReverseOrder reports whether test cases run in descending name order.
func (g *GroupContext) ReverseOrder() bool { return g.reverseOrder }

// SetReverseOrder sets the test case order.
func (g *GroupContext) SetReverseOrder(reverse bool) { g.reverseOrder = reverse }

// CasePattern returns the test case name filter, nil when every case runs.
func (g *GroupContext) CasePattern() *regexp.Regexp { return g.pattern }

// SetCasePattern sets the test case name filter.
func (g *GroupContext) SetCasePattern(re *regexp.Regexp) { g.pattern = re }

// NewCase creates a test case context for the test method m, prepares it
// with the case setup and adds it to the group.
func (g *GroupContext) NewCase(name string, m Callable) (*CaseContext, error) {
	if _, exists := g.cases[name]; exists {
		return nil, fmt.Errorf("test case %s already exists in group %s", name, g.name)
	}
	c := newCaseContext(g, name, m)
	if g.caseSetup != nil {
		if err := g.caseSetup(c); err != nil {
			return nil, fmt.Errorf("setting up test case %s: %w", name, err)
		}
	}
	g.cases[name] = c
	g.logger.Debug("test case added", "test_case", name)
	return c, nil
}

// RemoveCase removes a test case from the group. It returns false if there
// was no such case.
func (g *GroupContext) RemoveCase(name string) bool {
	if _, ok := g.cases[name]; !ok {
		return false
	}
	delete(g.cases, name)
	g.logger.Debug("test case removed", "test_case", name)
	return true
}

// Case returns the named test case context.
func (g *GroupContext) Case(name string) (*CaseContext, bool) {
	c, ok := g.cases[name]
	return c, ok
}

// Cases returns the test cases in execution order: ascending by name, or
// descending when the reverse order is set.
func (g *GroupContext) Cases() []*CaseContext {
	names := slices.Sorted(maps.Keys(g.cases))
	if g.reverseOrder {
		slices.Reverse(names)
	}
	out := make([]*CaseContext, len(names))
	for i, name := range names {
		out[i] = g.cases[name]
	}
	return out
}

// RunTestCases runs every test case in execution order and folds each final
// result into the group's accumulator. A fatal error inside a test case is
// recorded as a failed case and does not stop its siblings.
func (g *GroupContext) RunTestCases() {
	for _, c := range g.Cases() {
		g.observer.CaseStarted(g.name, c.name)
		start := time.Now()

		r, err := c.Run()
		if err != nil {
			g.logger.Error("test case aborted", "test_case", c.name, "error", err)
			r = result.Failed(err.Error())
		}

		d := time.Since(start)
		g.AddExecutionResult(c.name, r)
		g.executions = append(g.executions, CaseExecution{Name: c.name, Result: r, Duration: d, Err: err})
		g.observer.CaseFinished(g.name, c.name, r, d)
		g.logger.Info("test case finished", "test_case", c.name, "status", r.Status(), "duration", d)
	}
}

// Executions returns the test cases run so far, in execution order.
func (g *GroupContext) Executions() []CaseExecution {
	return slices.Clone(g.executions)
}

// ProcessorsInUse returns the classes of every processor bound to the group
// or to one of its test cases.
func (g *GroupContext) ProcessorsInUse() []processor.ID {
	seen := make(map[processor.ID]bool)
	var out []processor.ID
	add := func(id processor.ID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, p := range g.Processors() {
		add(processor.IDOf(p))
	}
	for _, c := range g.Cases() {
		for _, p := range c.Processors() {
			add(processor.IDOf(p))
		}
	}
	return out
}

// Run drives the group through its phases and returns the final verdict.
// Running the same context again starts from a clean state. The error is
// fatal: the verdict is meaningless when it is set.
func (g *GroupContext) Run() (result.TestResult, error) {
	g.reset()
	clear(g.cases)
	g.executions = nil

	g.logger.Info("running test group", "run_id", g.runID)
	if err := iterate(g, &g.lifecycle, g.report); err != nil {
		return result.TestResult{}, fmt.Errorf("test group %s: %w", g.name, err)
	}

	r := g.FinalResult()
	g.logger.Info("test group finished", "status", r.Status(), "message", r.Message())
	return r, nil
}

func (g *GroupContext) report(id processor.ID, ph phase.Phase, d time.Duration, err error) {
	g.observer.ProcessorExecuted(Execution{
		Group:     g.name,
		Processor: id,
		Phase:     ph,
		Duration:  d,
		Err:       err,
	})
}
