package processors

import (
	"fmt"
	"strconv"

	"github.com/nomis52/phasetest/discovery"
	"github.com/nomis52/phasetest/engine"
	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
	"github.com/nomis52/phasetest/result"
)

// DefaultTarget chooses the test method, without arguments, as what the
// calling-testcase phase invokes. Any other processor owning the
// setting-what-to-call phase takes precedence.
type DefaultTarget struct {
	processor.Base[*engine.CaseContext]
}

func (p *DefaultTarget) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.SettingWhatToCall}
}

func (p *DefaultTarget) Ownership(phase.Phase) processor.Ownership {
	return processor.OnePerPhase
}

func (p *DefaultTarget) IsReadyToWork(ph phase.Phase, _ *engine.CaseContext) processor.Readiness {
	return p.ReadyOnce(ph)
}

func (p *DefaultTarget) Process(_ phase.Phase, c *engine.CaseContext) error {
	c.SetTarget(c.Method())
	c.SetArgs()
	return nil
}

// RowSetter applies Rows annotations: the test method is invoked once per
// argument row. After each row has been processed the engine comes back to
// the setting-what-to-call phase for the next one.
type RowSetter struct {
	processor.Base[*engine.CaseContext]
	rows  [][]any
	names []string
	next  int
}

func (p *RowSetter) Apply(_ discovery.Element, annotation any) error {
	rows, ok := annotation.(Rows)
	if !ok {
		return unexpected(p, annotation)
	}
	if len(rows.Names) > 0 && len(rows.Names) != len(rows.Args) {
		return fmt.Errorf("rows have %d names for %d argument rows", len(rows.Names), len(rows.Args))
	}
	for i, args := range rows.Args {
		name := strconv.Itoa(len(p.rows) + 1)
		if len(rows.Names) > 0 {
			name = rows.Names[i]
		}
		p.rows = append(p.rows, args)
		p.names = append(p.names, name)
	}
	return nil
}

func (p *RowSetter) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.SettingWhatToCall}
}

func (p *RowSetter) Ownership(phase.Phase) processor.Ownership {
	return processor.OnePerPhase
}

func (p *RowSetter) HasHigherPriorityThan(other processor.Processor[*engine.CaseContext]) bool {
	_, ok := other.(*DefaultTarget)
	return ok
}

func (p *RowSetter) IsReadyToWork(ph phase.Phase, _ *engine.CaseContext) processor.Readiness {
	if len(p.rows) > 0 && p.next >= len(p.rows) {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *RowSetter) Process(_ phase.Phase, c *engine.CaseContext) error {
	if len(p.rows) == 0 {
		return engine.NotApplicable("no argument rows")
	}
	c.SetTarget(c.Method())
	c.SetArgs(p.rows[p.next]...)
	c.SetVariant(p.names[p.next])
	p.next++
	return nil
}

func (p *RowSetter) BackToPhaseAfter(phase.Phase) (phase.Phase, bool) {
	return phase.ProcessingResult, p.next < len(p.rows)
}

func (p *RowSetter) CleanupState() {
	p.Base.CleanupState()
	p.next = 0
}

// PreconditionCheck makes the test case not applicable when one of the
// Precondition annotations of its method is not met.
type PreconditionCheck struct {
	processor.Base[*engine.CaseContext]
	preconditions []Precondition
}

func (p *PreconditionCheck) Apply(_ discovery.Element, annotation any) error {
	pc, ok := annotation.(Precondition)
	if !ok {
		return unexpected(p, annotation)
	}
	if pc.Met == nil {
		return fmt.Errorf("precondition %q has no check", pc.Reason)
	}
	p.preconditions = append(p.preconditions, pc)
	return nil
}

func (p *PreconditionCheck) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.BeforeInvocation}
}

func (p *PreconditionCheck) IsReadyToWork(ph phase.Phase, _ *engine.CaseContext) processor.Readiness {
	return p.ReadyOnce(ph)
}

func (p *PreconditionCheck) Process(phase.Phase, *engine.CaseContext) error {
	return checkPreconditions(p.preconditions)
}

// Invoker calls the target chosen in setting-what-to-call and records the
// error or value it returns. A panicking test method is recorded as a fault.
// A test method returning the not-applicable signal makes the test case
// not applicable.
type Invoker struct {
	processor.Base[*engine.CaseContext]
}

func (p *Invoker) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.CallingTestCase}
}

func (p *Invoker) IsReadyToWork(ph phase.Phase, c *engine.CaseContext) processor.Readiness {
	if c.Target() == nil {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *Invoker) Process(_ phase.Phase, c *engine.CaseContext) error {
	res := c.Result()
	res.Reset()

	v, err := invoke(c)
	res.MarkInvoked()
	if err != nil {
		if engine.IsNotApplicable(err) {
			return err
		}
		fault := engine.Unwrap(err)
		c.Logger().Debug("test method failed", "variant", c.VariantName(), "error", fault)
		res.SetFault(fault)
		return nil
	}
	res.SetReturnValue(v)
	return nil
}

func invoke(c *engine.CaseContext) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = engine.Recovered(c.VariantName(), r)
		}
	}()
	return c.Target()(c.Args()...)
}

// ErrorExpectation applies ExpectError annotations after the invocation: a
// matching fault is cleared, a missing or different one becomes the fault.
// An expectation attached to the test method beats one attached to the group.
type ErrorExpectation struct {
	processor.Base[*engine.CaseContext]
	kind    discovery.ElementKind
	expects []ExpectError
}

func (p *ErrorExpectation) Apply(e discovery.Element, annotation any) error {
	ee, ok := annotation.(ExpectError)
	if !ok {
		return unexpected(p, annotation)
	}
	p.kind = e.Kind
	p.expects = append(p.expects, ee)
	return nil
}

func (p *ErrorExpectation) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.AfterInvocation}
}

func (p *ErrorExpectation) Ownership(phase.Phase) processor.Ownership {
	return processor.OnePerPhase
}

func (p *ErrorExpectation) HasHigherPriorityThan(other processor.Processor[*engine.CaseContext]) bool {
	o, ok := other.(*ErrorExpectation)
	return ok && p.kind == discovery.MethodElement && o.kind == discovery.GroupElement
}

func (p *ErrorExpectation) IsReadyToWork(ph phase.Phase, c *engine.CaseContext) processor.Readiness {
	if !c.Result().Invoked() {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *ErrorExpectation) Process(_ phase.Phase, c *engine.CaseContext) error {
	res := c.Result()
	fault, ok := res.Fault()
	if !ok {
		res.SetFault(fmt.Errorf("expected %s, got none", p.describe()))
		return nil
	}
	for _, ee := range p.expects {
		if ee.matches(fault) {
			res.ClearFault()
			return nil
		}
	}
	res.SetFault(fmt.Errorf("expected %s, got: %w", p.describe(), fault))
	return nil
}

func (p *ErrorExpectation) describe() string {
	if len(p.expects) == 1 {
		return p.expects[0].String()
	}
	return fmt.Sprintf("one of %v", p.expects)
}

// Classifier turns the invocation's fault and return value into a verdict
// and folds it into the test case's accumulator under the variant name.
type Classifier struct {
	processor.Base[*engine.CaseContext]
}

func (p *Classifier) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.ProcessingResult}
}

func (p *Classifier) IsReadyToWork(ph phase.Phase, c *engine.CaseContext) processor.Readiness {
	if !c.Result().Invoked() {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *Classifier) Process(_ phase.Phase, c *engine.CaseContext) error {
	r := Classify(c.Result())
	c.AddExecutionResult(c.VariantName(), r)
	c.Logger().Debug("variant classified", "variant", c.VariantName(), "status", r.Status())
	return nil
}

// Classify derives the verdict of one invocation. A fault fails; a returned
// TestResult is taken as is; a returned false fails; anything else passes.
func Classify(res *result.CaseResult) result.TestResult {
	if fault, ok := res.Fault(); ok {
		return result.Failed(fault.Error())
	}
	v, _ := res.ReturnValue()
	switch v := v.(type) {
	case result.TestResult:
		return v
	case bool:
		if !v {
			return result.Failed("test method returned false")
		}
	}
	return result.Passed("")
}

// VariantRecorder receives the verdict of every test case variant.
type VariantRecorder interface {
	RecordVariant(group, testCase string, r result.TestResult)
}

// CaseMetrics reports each classified variant to a VariantRecorder.
type CaseMetrics struct {
	processor.Base[*engine.CaseContext]
	Recorder VariantRecorder
}

func (p *CaseMetrics) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.ProcessingResult}
}

func (p *CaseMetrics) UseAfter() []processor.ID {
	return []processor.ID{processor.IDFor[Classifier]()}
}

func (p *CaseMetrics) IsReadyToWork(ph phase.Phase, c *engine.CaseContext) processor.Readiness {
	if !c.Result().Invoked() {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *CaseMetrics) Process(_ phase.Phase, c *engine.CaseContext) error {
	r, ok := c.Accumulator().Last()
	if !ok {
		return nil
	}
	p.Recorder.RecordVariant(c.Parent().Name(), c.Name(), r)
	return nil
}
