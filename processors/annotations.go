// Package processors holds the built-in processors: the behaviors every test
// group run is made of (adding, filtering and running test cases, invoking
// test methods, classifying their outcome) and the processors created for
// annotations.
//
// Annotations are plain values a test group attaches to itself or to its
// test methods through discovery.Annotator. A processor created for an
// annotation implements Consumer and receives every annotation of its kind
// attached to the element it was created for.
package processors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nomis52/phasetest/discovery"
)

// Consumer is implemented by processors created for annotations.
type Consumer interface {
	// Apply hands the processor one annotation attached to e.
	Apply(e discovery.Element, annotation any) error
}

// Rows runs a test method once per argument row. Names, when set, label the
// rows in results; otherwise rows are numbered from 1.
type Rows struct {
	Args  [][]any
	Names []string
}

// ExpectError expects the test method to fail. The error must match Is
// (errors.Is) when set and contain Contains when set. Attached to the group,
// it applies to every test method without an ExpectError of its own.
type ExpectError struct {
	Is       error
	Contains string
}

func (e ExpectError) matches(err error) bool {
	if e.Is != nil && !errors.Is(err, e.Is) {
		return false
	}
	if e.Contains != "" && !strings.Contains(err.Error(), e.Contains) {
		return false
	}
	return true
}

func (e ExpectError) String() string {
	var parts []string
	if e.Is != nil {
		parts = append(parts, fmt.Sprintf("matching %q", e.Is))
	}
	if e.Contains != "" {
		parts = append(parts, fmt.Sprintf("containing %q", e.Contains))
	}
	if len(parts) == 0 {
		return "any error"
	}
	return "an error " + strings.Join(parts, " and ")
}

// Precondition makes the annotated group or test method not applicable
// when Met returns false.
type Precondition struct {
	Reason string
	Met    func() bool
}

// Exclude removes the annotated test method from the run. Attached to the
// group, it makes the whole group not applicable.
type Exclude struct {
	Reason string
}

// unexpected reports an annotation handed to the wrong processor.
func unexpected(p any, annotation any) error {
	return fmt.Errorf("processor %T cannot consume annotation %T", p, annotation)
}
