package engine

import (
	"errors"
	"fmt"

	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
)

// NotApplicableError is the signal a processor (or a test method) raises when
// the context it runs in does not apply. It is caught once per context run:
// the context's verdict becomes an inapplicable result and no further phases
// run. It is not a failure.
type NotApplicableError struct {
	Reason string
}

func (e *NotApplicableError) Error() string {
	if e.Reason == "" {
		return "not applicable"
	}
	return "not applicable: " + e.Reason
}

// NotApplicable returns the not-applicable signal with an optional reason.
func NotApplicable(reason string) error {
	return &NotApplicableError{Reason: reason}
}

// IsNotApplicable reports whether err carries the not-applicable signal.
func IsNotApplicable(err error) bool {
	var na *NotApplicableError
	return errors.As(err, &na)
}

// ContextBrokenError aborts a run because a processor reported that it
// cannot proceed.
type ContextBrokenError struct {
	Context   string
	Processor processor.ID
	Phase     phase.Phase
}

func (e *ContextBrokenError) Error() string {
	return fmt.Sprintf("context %q is broken: processor %s cannot proceed in phase %s",
		e.Context, e.Processor.ShortString(), e.Phase)
}

// ProcessorError is a fatal fault raised by a processor. Err is the original
// fault with any InvocationError layers removed.
type ProcessorError struct {
	Processor processor.ID
	Phase     phase.Phase
	Err       error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor %s failed in phase %s: %v", e.Processor.ShortString(), e.Phase, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// InvocationError wraps a fault raised while invoking foreign code: a
// processor or a test method. Panics are recovered into an InvocationError
// carrying the panic value.
type InvocationError struct {
	// Target names what was invoked.
	Target string
	// Panic is the recovered value, nil if the fault was a returned error.
	Panic any
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking %s: %v", e.Target, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Recovered turns a recovered panic value into an InvocationError.
func Recovered(target string, v any) *InvocationError {
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", v)
	}
	return &InvocationError{Target: target, Panic: v, Err: err}
}

// Unwrap peels InvocationError layers until it reaches a fault that is not
// one. Only the outermost chain of invocation wrappers is removed; any other
// error is returned as is.
func Unwrap(err error) error {
	for {
		ie, ok := err.(*InvocationError)
		if !ok || ie.Err == nil {
			return err
		}
		err = ie.Err
	}
}

// BackJumpError reports a back-jump request that does not target a later
// phase of the same context flavor.
type BackJumpError struct {
	Processor processor.ID
	From      phase.Phase
	To        phase.Phase
}

func (e *BackJumpError) Error() string {
	return fmt.Sprintf("processor %s requested to resume %s after %s, which is not a later phase",
		e.Processor.ShortString(), e.From, e.To)
}
