package processors

import (
	"github.com/nomis52/phasetest/engine"
	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
)

// GroupSetUpper is implemented by test groups needing setup before their
// test cases are added.
type GroupSetUpper interface {
	SetUpGroup() error
}

// GroupTearDowner is implemented by test groups needing cleanup after
// their test cases ran.
type GroupTearDowner interface {
	TearDownGroup() error
}

// CaseSetUpper is implemented by test groups needing setup before each test case.
type CaseSetUpper interface {
	SetUpCase(name string) error
}

// CaseTearDowner is implemented by test groups needing cleanup after each test case.
type CaseTearDowner interface {
	TearDownCase(name string) error
}

// BeforeGroupHook calls SetUpGroup in the before-testgroup phase.
type BeforeGroupHook struct {
	processor.Base[*engine.GroupContext]
}

func (p *BeforeGroupHook) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.BeforeTestGroup}
}

func (p *BeforeGroupHook) IsReadyToWork(ph phase.Phase, g *engine.GroupContext) processor.Readiness {
	if _, ok := g.Group().(GroupSetUpper); !ok {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *BeforeGroupHook) Process(_ phase.Phase, g *engine.GroupContext) error {
	s := g.Group().(GroupSetUpper)
	return s.SetUpGroup()
}

// AfterGroupHook calls TearDownGroup in the after-testgroup phase.
type AfterGroupHook struct {
	processor.Base[*engine.GroupContext]
}

func (p *AfterGroupHook) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.AfterTestGroup}
}

func (p *AfterGroupHook) IsReadyToWork(ph phase.Phase, g *engine.GroupContext) processor.Readiness {
	if _, ok := g.Group().(GroupTearDowner); !ok {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *AfterGroupHook) Process(_ phase.Phase, g *engine.GroupContext) error {
	td := g.Group().(GroupTearDowner)
	return td.TearDownGroup()
}

// BeforeCaseHook calls SetUpCase in the before-testcase phase.
type BeforeCaseHook struct {
	processor.Base[*engine.CaseContext]
}

func (p *BeforeCaseHook) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.BeforeTestCase}
}

func (p *BeforeCaseHook) IsReadyToWork(ph phase.Phase, c *engine.CaseContext) processor.Readiness {
	if _, ok := c.Parent().Group().(CaseSetUpper); !ok {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *BeforeCaseHook) Process(_ phase.Phase, c *engine.CaseContext) error {
	s := c.Parent().Group().(CaseSetUpper)
	return s.SetUpCase(c.Name())
}

// AfterCaseHook calls TearDownCase in the after-testcase phase.
type AfterCaseHook struct {
	processor.Base[*engine.CaseContext]
}

func (p *AfterCaseHook) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.AfterTestCase}
}

func (p *AfterCaseHook) IsReadyToWork(ph phase.Phase, c *engine.CaseContext) processor.Readiness {
	if _, ok := c.Parent().Group().(CaseTearDowner); !ok {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *AfterCaseHook) Process(_ phase.Phase, c *engine.CaseContext) error {
	td := c.Parent().Group().(CaseTearDowner)
	return td.TearDownCase(c.Name())
}
