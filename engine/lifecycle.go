package engine

import (
	"log/slog"

	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
	"github.com/nomis52/phasetest/result"
)

// lifecycle is the state both context flavors share: the phase map, the
// accumulator and the overriding result.
type lifecycle[C any] struct {
	name   string
	phases []phase.Phase
	level  result.Level
	procs  *processor.PhaseMap[C]

	acc           *result.Accumulator
	overriding    *result.TestResult
	notApplicable bool

	logger *slog.Logger
}

func newLifecycle[C any](name string, phases []phase.Phase, level result.Level, logger *slog.Logger) lifecycle[C] {
	return lifecycle[C]{
		name:   name,
		phases: phases,
		level:  level,
		procs:  processor.NewPhaseMap[C](),
		logger: logger,
	}
}

// Register binds p to the phases it is interested in, resolving ownership
// conflicts and dependency order. Errors are configuration errors.
func (l *lifecycle[C]) Register(p processor.Processor[C]) error {
	if err := l.procs.Register(p); err != nil {
		return err
	}
	l.logger.Debug("processor registered",
		"processor", processor.IDOf(p).ShortString(),
		"phases", p.PhasesInterestedIn())
	return nil
}

// Processors returns every processor bound to at least one phase.
func (l *lifecycle[C]) Processors() []processor.Processor[C] {
	return l.procs.All()
}

// ProcessorsFor returns the processors bound to ph in execution order.
func (l *lifecycle[C]) ProcessorsFor(ph phase.Phase) []processor.Processor[C] {
	return l.procs.For(ph)
}

// AddExecutionResult folds one named result into the accumulator.
func (l *lifecycle[C]) AddExecutionResult(name string, r result.TestResult) {
	l.accumulator().Add(name, r)
}

// Accumulator returns the context's accumulator, creating it on first use.
func (l *lifecycle[C]) Accumulator() *result.Accumulator {
	return l.accumulator()
}

func (l *lifecycle[C]) accumulator() *result.Accumulator {
	if l.acc == nil {
		l.acc = result.NewAccumulator(l.level)
	}
	return l.acc
}

// SetOverridingResult installs a verdict that replaces the accumulated one.
func (l *lifecycle[C]) SetOverridingResult(r result.TestResult) {
	l.overriding = &r
}

// OverridingResult returns the overriding verdict, if one was set.
func (l *lifecycle[C]) OverridingResult() (result.TestResult, bool) {
	if l.overriding == nil {
		return result.TestResult{}, false
	}
	return *l.overriding, true
}

// IsNotApplicable reports whether the last run ended with the not-applicable signal.
func (l *lifecycle[C]) IsNotApplicable() bool {
	return l.notApplicable
}

// FinalResult returns the overriding result if set, else the accumulated one.
func (l *lifecycle[C]) FinalResult() result.TestResult {
	if r, ok := l.OverridingResult(); ok {
		return r
	}
	return l.accumulator().FinalResult()
}

func (l *lifecycle[C]) markNotApplicable(reason string) {
	l.notApplicable = true
	l.SetOverridingResult(result.Inapplicable(reason))
}

// reset discards the verdict state and every processor's per-run state
// before a fresh run of the same context.
func (l *lifecycle[C]) reset() {
	l.acc = nil
	l.overriding = nil
	l.notApplicable = false
	for _, p := range l.procs.All() {
		p.CleanupState()
	}
}
