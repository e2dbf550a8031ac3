// Package result holds the verdict values produced by a run and the
// accumulator that folds many named verdicts into one summary.
package result

import (
	"encoding/json"
	"fmt"
)

// Type is the binary classification of a TestResult.
type Type int

const (
	// TypeOK marks a passed (or not applicable) result.
	TypeOK Type = iota
	// TypeFailure marks a failed result.
	TypeFailure
)

// String returns a human-readable representation of the Type.
func (t Type) String() string {
	switch t {
	case TypeOK:
		return "ok"
	case TypeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// TestResult is an immutable verdict: a Type plus a message.
//
// An inapplicable result is OK-typed, so it counts as passed wherever only
// IsOK is consulted, but IsInapplicable tells it apart for reporting and for
// the "all not applicable" classification.
type TestResult struct {
	typ          Type
	message      string
	inapplicable bool
}

// New creates a TestResult of the given type.
func New(typ Type, message string) TestResult {
	return TestResult{typ: typ, message: message}
}

// Passed creates an OK result.
func Passed(message string) TestResult {
	return TestResult{typ: TypeOK, message: message}
}

// Failed creates a FAILURE result.
func Failed(message string) TestResult {
	return TestResult{typ: TypeFailure, message: message}
}

// Inapplicable creates the OK-typed result of a test that did not apply.
// The reason may be empty.
func Inapplicable(reason string) TestResult {
	return TestResult{typ: TypeOK, message: reason, inapplicable: true}
}

// Type returns the binary classification.
func (r TestResult) Type() Type {
	return r.typ
}

// Message returns the result message.
func (r TestResult) Message() string {
	return r.message
}

// IsOK reports whether the result is OK-typed. Inapplicable results are OK.
func (r TestResult) IsOK() bool {
	return r.typ == TypeOK
}

// IsInapplicable reports whether the result records a test that did not apply.
func (r TestResult) IsInapplicable() bool {
	return r.inapplicable
}

// Reason returns the inapplicability reason, or "" for ordinary results.
func (r TestResult) Reason() string {
	if !r.inapplicable {
		return ""
	}
	return r.message
}

// Status returns "passed", "failed" or "not_applicable".
func (r TestResult) Status() string {
	switch {
	case r.inapplicable:
		return "not_applicable"
	case r.IsOK():
		return "passed"
	default:
		return "failed"
	}
}

// String returns "Passed. {message}" or "Failed. {message}".
func (r TestResult) String() string {
	if r.IsOK() {
		return fmt.Sprintf("Passed. %s", r.message)
	}
	return fmt.Sprintf("Failed. %s", r.message)
}

// MarshalJSON implements json.Marshaler.
func (r TestResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}{
		Status:  r.Status(),
		Message: r.message,
	})
}
