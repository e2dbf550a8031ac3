// Package processor defines the contract of a pluggable processor, the
// dependency ordering of processors bound to the same life phase and the
// ownership rules deciding which processors share a phase.
//
// A processor is generic over the context it works on. The engine
// instantiates it twice: once for test group contexts and once for test case
// contexts, so a processor is always bound to exactly one context flavor.
package processor

import (
	"github.com/nomis52/phasetest/phase"
)

// Ownership tells whether a phase may host more than one processor of
// conflicting purpose.
type Ownership int

const (
	// ManyPerPhase places no limit on co-resident processors.
	ManyPerPhase Ownership = iota
	// OnePerPhase allows at most one such processor per phase per context.
	OnePerPhase
)

// String returns a human-readable representation of the Ownership.
func (o Ownership) String() string {
	switch o {
	case ManyPerPhase:
		return "many_per_phase"
	case OnePerPhase:
		return "one_per_phase"
	default:
		return "unknown"
	}
}

// Readiness is a processor's answer to "do you have work to do now?".
type Readiness int

const (
	// NotReady means the processor has nothing to do in this sweep.
	NotReady Readiness = iota
	// Ready means the processor should be executed.
	Ready
	// ContextIsBroken aborts the run: the processor cannot proceed at all.
	ContextIsBroken
)

// String returns a human-readable representation of the Readiness.
func (r Readiness) String() string {
	switch r {
	case NotReady:
		return "not_ready"
	case Ready:
		return "ready"
	case ContextIsBroken:
		return "context_is_broken"
	default:
		return "unknown"
	}
}

// Processor is a pluggable behavior bound to one or more life phases of a
// context of type C.
//
// IMPLEMENTATION CONTRACT:
//   - IsReadyToWork is polled repeatedly during a phase; Process is only called after Ready
//   - Process may mutate the context, set an overriding result or register more processors
//   - The engine marks the processor as called for the phase after every Process call,
//     whether or not it returned an error
//   - CleanupState is called before every fresh test case run
//
// Embed Base to get default implementations for everything except
// PhasesInterestedIn, IsReadyToWork and Process.
type Processor[C any] interface {
	// PhasesInterestedIn returns the phases the processor is bound to.
	PhasesInterestedIn() []phase.Phase

	// Ownership returns the ownership mode for one of the interested phases.
	Ownership(p phase.Phase) Ownership

	// IsReadyToWork reports whether the processor wants to run now.
	IsReadyToWork(p phase.Phase, c C) Readiness

	// Process performs the processor's work for the phase.
	Process(p phase.Phase, c C) error

	// UseBefore lists processor classes this processor must run before.
	UseBefore() []ID

	// UseAfter lists processor classes this processor must run after.
	UseAfter() []ID

	// HasHigherPriorityThan decides ownership conflicts between two
	// OnePerPhase processors. Exactly one side of a conflict must claim it.
	HasHigherPriorityThan(other Processor[C]) bool

	// BackToPhaseAfter asks the engine to come back to current once the
	// returned phase has completed.
	BackToPhaseAfter(current phase.Phase) (phase.Phase, bool)

	// SetCalledForPhase sets the "already called in this phase" flag.
	SetCalledForPhase(p phase.Phase, called bool)

	// CalledForPhase returns the "already called in this phase" flag.
	CalledForPhase(p phase.Phase) bool

	// CleanupState resets any per-run state.
	CleanupState()
}

// Base provides the default parts of the Processor contract: many per
// phase, no ordering constraints, no priority claims, no back-jumps, and the
// per-phase called flags.
type Base[C any] struct {
	called map[phase.Phase]bool
}

// Ownership returns ManyPerPhase.
func (b *Base[C]) Ownership(phase.Phase) Ownership {
	return ManyPerPhase
}

// UseBefore returns no constraints.
func (b *Base[C]) UseBefore() []ID {
	return nil
}

// UseAfter returns no constraints.
func (b *Base[C]) UseAfter() []ID {
	return nil
}

// HasHigherPriorityThan claims no priority.
func (b *Base[C]) HasHigherPriorityThan(Processor[C]) bool {
	return false
}

// BackToPhaseAfter never requests a back-jump.
func (b *Base[C]) BackToPhaseAfter(phase.Phase) (phase.Phase, bool) {
	return 0, false
}

// SetCalledForPhase sets the called flag for p.
func (b *Base[C]) SetCalledForPhase(p phase.Phase, called bool) {
	if b.called == nil {
		b.called = make(map[phase.Phase]bool)
	}
	b.called[p] = called
}

// CalledForPhase returns the called flag for p.
func (b *Base[C]) CalledForPhase(p phase.Phase) bool {
	return b.called[p]
}

// CleanupState clears every called flag.
func (b *Base[C]) CleanupState() {
	clear(b.called)
}

// ReadyOnce returns Ready until the processor has been called in p.
func (b *Base[C]) ReadyOnce(p phase.Phase) Readiness {
	if b.CalledForPhase(p) {
		return NotReady
	}
	return Ready
}
