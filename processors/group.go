package processors

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/nomis52/phasetest/discovery"
	"github.com/nomis52/phasetest/engine"
	"github.com/nomis52/phasetest/logging"
	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
	"github.com/spf13/pflag"
)

// LoggingInit installs the group logger writing to the run's log stream.
type LoggingInit struct {
	processor.Base[*engine.GroupContext]
	Config logging.Config
}

func (p *LoggingInit) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.LoggingInit}
}

func (p *LoggingInit) IsReadyToWork(ph phase.Phase, _ *engine.GroupContext) processor.Readiness {
	return p.ReadyOnce(ph)
}

func (p *LoggingInit) Process(_ phase.Phase, g *engine.GroupContext) error {
	handler, err := logging.NewHandler(p.Config, g.Log())
	if err != nil {
		return err
	}
	logger := slog.New(handler).With("component", "engine")
	if id := g.RunID(); id != "" {
		logger = logger.With("run_id", id)
	}
	g.SetLogger(logger)
	return nil
}

// ArgumentParser parses the run arguments in the argument-processing phase.
//
// Recognized flags:
//
//	--reverse-order   run test cases in descending name order
//	--run <regexp>    only run test cases whose name matches
type ArgumentParser struct {
	processor.Base[*engine.GroupContext]
}

func (p *ArgumentParser) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.ArgumentProcessing}
}

func (p *ArgumentParser) IsReadyToWork(ph phase.Phase, _ *engine.GroupContext) processor.Readiness {
	return p.ReadyOnce(ph)
}

func (p *ArgumentParser) Process(_ phase.Phase, g *engine.GroupContext) error {
	fs := pflag.NewFlagSet(g.Name(), pflag.ContinueOnError)
	fs.SetOutput(g.Log())
	reverse := fs.Bool("reverse-order", false, "run test cases in descending name order")
	run := fs.String("run", "", "only run test cases matching this regular expression")

	if err := fs.Parse(g.Args()); err != nil {
		return fmt.Errorf("parsing run arguments: %w", err)
	}

	if fs.Changed("reverse-order") {
		g.SetReverseOrder(*reverse)
	}
	if *run != "" {
		re, err := regexp.Compile(*run)
		if err != nil {
			return fmt.Errorf("invalid --run pattern: %w", err)
		}
		g.SetCasePattern(re)
	}
	if rest := fs.Args(); len(rest) > 0 {
		g.Logger().Debug("ignoring positional run arguments", "args", rest)
	}
	return nil
}

// GroupPreconditionCheck makes the group not applicable when one of its
// Precondition annotations is not met. It runs before the group's setup.
type GroupPreconditionCheck struct {
	processor.Base[*engine.GroupContext]
	preconditions []Precondition
}

func (p *GroupPreconditionCheck) Apply(_ discovery.Element, annotation any) error {
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

func (p *GroupPreconditionCheck) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.BeforeTestGroup}
}

func (p *GroupPreconditionCheck) UseBefore() []processor.ID {
	return []processor.ID{processor.IDFor[BeforeGroupHook]()}
}

func (p *GroupPreconditionCheck) IsReadyToWork(ph phase.Phase, _ *engine.GroupContext) processor.Readiness {
	return p.ReadyOnce(ph)
}

func (p *GroupPreconditionCheck) Process(phase.Phase, *engine.GroupContext) error {
	return checkPreconditions(p.preconditions)
}

func checkPreconditions(pcs []Precondition) error {
	for _, pc := range pcs {
		if !pc.Met() {
			return engine.NotApplicable(pc.Reason)
		}
	}
	return nil
}

// CaseAdder adds a test case context for every discovered test method.
type CaseAdder struct {
	processor.Base[*engine.GroupContext]
	Structure *discovery.Structure
}

func (p *CaseAdder) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.TestCaseAdding}
}

func (p *CaseAdder) IsReadyToWork(ph phase.Phase, _ *engine.GroupContext) processor.Readiness {
	return p.ReadyOnce(ph)
}

func (p *CaseAdder) Process(_ phase.Phase, g *engine.GroupContext) error {
	for _, c := range p.Structure.Cases {
		if _, err := g.NewCase(c.Name, c.Bind(g.Group())); err != nil {
			return err
		}
	}
	return nil
}

// CaseFilter removes the test cases not matching the group's case pattern.
type CaseFilter struct {
	processor.Base[*engine.GroupContext]
}

func (p *CaseFilter) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.TestCaseRemoving}
}

func (p *CaseFilter) IsReadyToWork(ph phase.Phase, g *engine.GroupContext) processor.Readiness {
	if g.CasePattern() == nil {
		return processor.NotReady
	}
	return p.ReadyOnce(ph)
}

func (p *CaseFilter) Process(_ phase.Phase, g *engine.GroupContext) error {
	re := g.CasePattern()
	for _, c := range g.Cases() {
		if !re.MatchString(c.Name()) {
			g.RemoveCase(c.Name())
		}
	}
	return nil
}

// Excluder applies an Exclude annotation: it removes the annotated test
// case, or makes the group not applicable when the group is annotated.
type Excluder struct {
	processor.Base[*engine.GroupContext]
	element discovery.Element
	reason  string
}

func (p *Excluder) Apply(e discovery.Element, annotation any) error {
	ex, ok := annotation.(Exclude)
	if !ok {
		return unexpected(p, annotation)
	}
	p.element = e
	p.reason = ex.Reason
	return nil
}

func (p *Excluder) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.TestCaseRemoving}
}

func (p *Excluder) IsReadyToWork(ph phase.Phase, _ *engine.GroupContext) processor.Readiness {
	return p.ReadyOnce(ph)
}

func (p *Excluder) Process(_ phase.Phase, g *engine.GroupContext) error {
	if p.element.Kind == discovery.GroupElement {
		return engine.NotApplicable(excludedReason(p.reason))
	}
	if g.RemoveCase(p.element.Name) {
		g.Logger().Info("test case excluded", "test_case", p.element.Name, "reason", p.reason)
	}
	return nil
}

func excludedReason(reason string) string {
	if reason == "" {
		return "excluded"
	}
	return "excluded: " + reason
}

// CaseRunner runs the group's test cases.
type CaseRunner struct {
	processor.Base[*engine.GroupContext]
}

func (p *CaseRunner) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.RunningTestCases}
}

func (p *CaseRunner) IsReadyToWork(ph phase.Phase, _ *engine.GroupContext) processor.Readiness {
	return p.ReadyOnce(ph)
}

func (p *CaseRunner) Process(_ phase.Phase, g *engine.GroupContext) error {
	g.RunTestCases()
	return nil
}
