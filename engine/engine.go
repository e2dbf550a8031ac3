package engine

import (
	"errors"
	"slices"
	"time"

	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
)

// executed is called once per processor call with the elapsed time and the
// error the call produced.
type executed func(id processor.ID, ph phase.Phase, d time.Duration, err error)

// iterate drives the life-phase state machine of one context. The
// not-applicable signal is caught here, once for the whole iteration: it
// marks the context not applicable and stops the machine. Every other error
// is fatal and returned.
func iterate[C any](c C, l *lifecycle[C], report executed) error {
	err := runPhases(c, l, report)
	var na *NotApplicableError
	if errors.As(err, &na) {
		l.logger.Info("context not applicable", "context", l.name, "reason", na.Reason)
		l.markNotApplicable(na.Reason)
		return nil
	}
	return err
}

func runPhases[C any](c C, l *lifecycle[C], report executed) error {
	// resume maps a phase to the earlier phase that must be re-entered once
	// it has converged.
	resume := make(map[phase.Phase]phase.Phase)

	for i := 0; i < len(l.phases); {
		current := l.phases[i]
		l.logger.Debug("entering phase", "context", l.name, "phase", current)

		if err := converge(c, l, current, resume, report); err != nil {
			return err
		}

		if back, ok := resume[current]; ok {
			delete(resume, current)
			l.logger.Debug("resuming earlier phase", "context", l.name, "phase", back, "after", current)
			i = slices.Index(l.phases, back)
			continue
		}
		i++
	}
	return nil
}

// converge runs the fixpoint loop of one phase: sweep the processors bound to
// ph, executing every ready one, until a sweep executes nothing. The list is
// fetched again for every sweep since a processor may register others.
func converge[C any](c C, l *lifecycle[C], ph phase.Phase, resume map[phase.Phase]phase.Phase, report executed) error {
	for _, p := range l.procs.For(ph) {
		p.SetCalledForPhase(ph, false)
	}

	for {
		ran := false
		for _, p := range l.procs.For(ph) {
			id := processor.IDOf(p)

			switch p.IsReadyToWork(ph, c) {
			case processor.NotReady:
				continue
			case processor.ContextIsBroken:
				l.logger.Error("context broken", "context", l.name, "processor", id.ShortString(), "phase", ph)
				return &ContextBrokenError{Context: l.name, Processor: id, Phase: ph}
			}

			start := time.Now()
			err := invoke(p, ph, c)
			report(id, ph, time.Since(start), err)
			if err != nil {
				if IsNotApplicable(err) {
					return err
				}
				l.logger.Error("processor failed", "context", l.name, "processor", id.ShortString(), "phase", ph, "error", err)
				return &ProcessorError{Processor: id, Phase: ph, Err: Unwrap(err)}
			}
			ran = true

			if target, ok := p.BackToPhaseAfter(ph); ok {
				if err := checkBackJump(l.phases, id, ph, target); err != nil {
					return err
				}
				resume[target] = ph
			}
		}
		if !ran {
			return nil
		}
	}
}

// invoke calls p.Process, marking p as called for ph whatever the outcome.
// A panic is recovered into an *InvocationError.
func invoke[C any](p processor.Processor[C], ph phase.Phase, c C) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Recovered(processor.IDOf(p).ShortString(), r)
		}
		p.SetCalledForPhase(ph, true)
	}()
	return p.Process(ph, c)
}

func checkBackJump(phases []phase.Phase, id processor.ID, from, to phase.Phase) error {
	fromIdx := slices.Index(phases, from)
	toIdx := slices.Index(phases, to)
	if toIdx < 0 || toIdx <= fromIdx {
		return &BackJumpError{Processor: id, From: from, To: to}
	}
	return nil
}
