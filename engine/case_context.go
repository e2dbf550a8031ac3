package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
	"github.com/nomis52/phasetest/result"
)

// CaseProcessor is a processor bound to test case phases.
type CaseProcessor = processor.Processor[*CaseContext]

// Callable invokes a test method with the given arguments.
type Callable func(args ...any) (any, error)

// CaseContext is the state of one test case of a group run.
type CaseContext struct {
	lifecycle[*CaseContext]

	parent *GroupContext
	method Callable

	target  Callable
	args    []any
	variant string
	outcome result.CaseResult
}

func newCaseContext(parent *GroupContext, name string, m Callable) *CaseContext {
	logger := parent.logger
	if parent.loggerHook != nil {
		logger = parent.loggerHook.LoggerForCase(logger, name)
	}
	logger = logger.With("test_case", name)
	return &CaseContext{
		lifecycle: newLifecycle[*CaseContext](name, phase.CasePhases(), result.CaseLevel, logger),
		parent:    parent,
		method:    m,
	}
}

// Name returns the test case name.
func (c *CaseContext) Name() string { return c.name }

// Parent returns the group the test case belongs to.
func (c *CaseContext) Parent() *GroupContext { return c.parent }

// Logger returns the test case's logger.
func (c *CaseContext) Logger() *slog.Logger { return c.logger }

// Method returns the discovered test method.
func (c *CaseContext) Method() Callable { return c.method }

// Target returns what the calling-testcase phase invokes, nil until a
// setting-what-to-call processor chose it.
func (c *CaseContext) Target() Callable { return c.target }

// SetTarget sets what the calling-testcase phase invokes.
func (c *CaseContext) SetTarget(target Callable) { c.target = target }

// Args returns a copy of the arguments the target is invoked with.
func (c *CaseContext) Args() []any { return slices.Clone(c.args) }

// SetArgs stores a copy of args.
func (c *CaseContext) SetArgs(args ...any) { c.args = slices.Clone(args) }

// Variant returns the name of the current variant, e.g. an argument row.
func (c *CaseContext) Variant() string { return c.variant }

// SetVariant names the current variant.
func (c *CaseContext) SetVariant(v string) { c.variant = v }

// VariantName returns the test case name qualified with the variant, if any.
func (c *CaseContext) VariantName() string {
	if c.variant == "" {
		return c.name
	}
	return fmt.Sprintf("%s[%s]", c.name, c.variant)
}

// Result returns the fault and return value of the current invocation.
func (c *CaseContext) Result() *result.CaseResult { return &c.outcome }

// Run drives the test case through its phases and returns its verdict.
// Every processor's state is cleaned up first so that repeated runs of the
// same context behave alike.
func (c *CaseContext) Run() (result.TestResult, error) {
	c.reset()
	c.outcome.Reset()
	c.target = nil
	c.args = nil
	c.variant = ""

	if err := iterate(c, &c.lifecycle, c.report); err != nil {
		return result.TestResult{}, fmt.Errorf("test case %s: %w", c.name, err)
	}
	return c.FinalResult(), nil
}

func (c *CaseContext) report(id processor.ID, ph phase.Phase, d time.Duration, err error) {
	c.parent.observer.ProcessorExecuted(Execution{
		Group:     c.parent.name,
		Case:      c.name,
		Processor: id,
		Phase:     ph,
		Duration:  d,
		Err:       err,
	})
}
