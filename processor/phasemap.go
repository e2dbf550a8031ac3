package processor

import (
	"fmt"
	"slices"

	"github.com/nomis52/phasetest/phase"
)

// PriorityConflictError reports two OnePerPhase processors whose priority
// comparisons do not agree. It is a configuration error.
type PriorityConflictError struct {
	Existing  ID
	Candidate ID
	// BothClaim is true when both processors claim the higher priority and
	// false when neither does.
	BothClaim bool
}

func (e *PriorityConflictError) Error() string {
	if e.BothClaim {
		return fmt.Sprintf("processors %s and %s both claim higher priority", e.Existing, e.Candidate)
	}
	return fmt.Sprintf("neither processor %s nor %s claims higher priority", e.Existing, e.Candidate)
}

// HigherPriority returns whichever of a and b has the higher priority.
// Exactly one of a.HasHigherPriorityThan(b) and b.HasHigherPriorityThan(a)
// must be true; anything else is a *PriorityConflictError.
func HigherPriority[C any](a, b Processor[C]) (Processor[C], error) {
	bWins, err := candidateWins(a, b)
	if err != nil {
		return nil, err
	}
	if bWins {
		return b, nil
	}
	return a, nil
}

func candidateWins[C any](existing, candidate Processor[C]) (bool, error) {
	existingClaims := existing.HasHigherPriorityThan(candidate)
	candidateClaims := candidate.HasHigherPriorityThan(existing)
	if existingClaims == candidateClaims {
		return false, &PriorityConflictError{
			Existing:  IDOf(existing),
			Candidate: IDOf(candidate),
			BothClaim: existingClaims,
		}
	}
	return candidateClaims, nil
}

// PhaseMap maps every life phase to the dependency-sorted list of processors
// bound to it. It is not safe for concurrent use; a PhaseMap belongs to one
// context of one run.
type PhaseMap[C any] struct {
	phases map[phase.Phase][]Processor[C]
	order  []Processor[C]
}

// NewPhaseMap creates an empty PhaseMap.
func NewPhaseMap[C any]() *PhaseMap[C] {
	return &PhaseMap[C]{
		phases: make(map[phase.Phase][]Processor[C]),
	}
}

// Register merges p into the list of every phase it is interested in:
//   - an empty list, or a ManyPerPhase processor, is appended
//   - a OnePerPhase processor competes with the existing OnePerPhase entry;
//     the winner keeps (or takes over) that list position, the loser is dropped
//   - without a competitor the processor is appended
//
// Each touched list is sorted again. Nothing is changed when an error is
// returned.
func (m *PhaseMap[C]) Register(p Processor[C]) error {
	updated := make(map[phase.Phase][]Processor[C])
	kept := false

	for _, ph := range p.PhasesInterestedIn() {
		if _, done := updated[ph]; done {
			continue
		}
		list, added, err := merge(m.phases[ph], p, ph)
		if err != nil {
			return fmt.Errorf("registering %s for phase %s: %w", IDOf(p).ShortString(), ph, err)
		}
		sorted, err := Sort(list)
		if err != nil {
			return fmt.Errorf("ordering processors of phase %s: %w", ph, err)
		}
		updated[ph] = sorted
		kept = kept || added
	}

	for ph, list := range updated {
		m.phases[ph] = list
	}
	if kept {
		m.order = append(m.order, p)
	}
	return nil
}

// merge returns the new list for ph and whether p ended up in it.
func merge[C any](list []Processor[C], p Processor[C], ph phase.Phase) ([]Processor[C], bool, error) {
	out := slices.Clone(list)
	if len(out) == 0 || p.Ownership(ph) == ManyPerPhase {
		return append(out, p), true, nil
	}

	for i, existing := range out {
		if existing.Ownership(ph) != OnePerPhase {
			continue
		}
		wins, err := candidateWins(existing, p)
		if err != nil {
			return nil, false, err
		}
		if !wins {
			return out, false, nil
		}
		out[i] = p
		return out, true, nil
	}

	return append(out, p), true, nil
}

// For returns the processors bound to ph in execution order.
func (m *PhaseMap[C]) For(ph phase.Phase) []Processor[C] {
	return slices.Clone(m.phases[ph])
}

// Phases returns the phases that have at least one processor.
func (m *PhaseMap[C]) Phases() []phase.Phase {
	var out []phase.Phase
	for ph, list := range m.phases {
		if len(list) > 0 {
			out = append(out, ph)
		}
	}
	slices.Sort(out)
	return out
}

// All returns every registered processor that survived ownership
// resolution in at least one phase, in registration order.
func (m *PhaseMap[C]) All() []Processor[C] {
	var out []Processor[C]
	for _, p := range m.order {
		if m.bound(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m *PhaseMap[C]) bound(p Processor[C]) bool {
	for _, list := range m.phases {
		for _, candidate := range list {
			if candidate == p {
				return true
			}
		}
	}
	return false
}
