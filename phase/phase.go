// Package phase defines the ordered life phases a test group and a test case
// pass through while they are run.
//
// Test group phases and test case phases are two separate, closed orderings.
// The order of each list is the iteration order of the engine.
package phase

import (
	"fmt"
	"slices"
)

// Phase is one named, ordered stage in the run of a test group or a test case.
type Phase int

const (
	// LoggingInit sets up logging for the test group.
	LoggingInit Phase = iota
	// ArgumentProcessing interprets the arguments the run was started with.
	ArgumentProcessing
	// BeforeTestGroup runs group level setup.
	BeforeTestGroup
	// TestCaseAdding creates the test case contexts.
	TestCaseAdding
	// TestCaseRemoving drops excluded test cases.
	TestCaseRemoving
	// RunningTestCases runs every remaining test case.
	RunningTestCases
	// AfterTestGroup runs group level teardown.
	AfterTestGroup

	// BeforeTestCase runs test case setup.
	BeforeTestCase
	// SettingWhatToCall decides the target and the arguments of the next invocation.
	SettingWhatToCall
	// BeforeInvocation runs just before the target is called.
	BeforeInvocation
	// CallingTestCase calls the target.
	CallingTestCase
	// AfterInvocation inspects what the call produced.
	AfterInvocation
	// ProcessingResult turns the invocation outcome into a verdict.
	ProcessingResult
	// AfterTestCase runs test case teardown.
	AfterTestCase
)

var (
	groupPhases = []Phase{
		LoggingInit,
		ArgumentProcessing,
		BeforeTestGroup,
		TestCaseAdding,
		TestCaseRemoving,
		RunningTestCases,
		AfterTestGroup,
	}

	casePhases = []Phase{
		BeforeTestCase,
		SettingWhatToCall,
		BeforeInvocation,
		CallingTestCase,
		AfterInvocation,
		ProcessingResult,
		AfterTestCase,
	}

	names = map[Phase]string{
		LoggingInit:        "logging-init",
		ArgumentProcessing: "argument-processing",
		BeforeTestGroup:    "before-testgroup",
		TestCaseAdding:     "testcase-adding",
		TestCaseRemoving:   "testcase-removing",
		RunningTestCases:   "running-testcases",
		AfterTestGroup:     "after-testgroup",
		BeforeTestCase:     "before-testcase",
		SettingWhatToCall:  "setting-what-to-call",
		BeforeInvocation:   "before-invocation",
		CallingTestCase:    "calling-testcase",
		AfterInvocation:    "after-invocation",
		ProcessingResult:   "processing-result",
		AfterTestCase:      "after-testcase",
	}
)

// GroupPhases returns the test group phases in iteration order.
func GroupPhases() []Phase {
	return slices.Clone(groupPhases)
}

// CasePhases returns the test case phases in iteration order.
func CasePhases() []Phase {
	return slices.Clone(casePhases)
}

// String returns the phase name, e.g. "running-testcases".
func (p Phase) String() string {
	if name, ok := names[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// IsGroupPhase reports whether p belongs to the test group ordering.
func (p Phase) IsGroupPhase() bool {
	return slices.Contains(groupPhases, p)
}

// IsCasePhase reports whether p belongs to the test case ordering.
func (p Phase) IsCasePhase() bool {
	return slices.Contains(casePhases, p)
}

// IsValid reports whether p is one of the declared phases.
func (p Phase) IsValid() bool {
	_, ok := names[p]
	return ok
}

// Parse returns the phase with the given name.
func Parse(name string) (Phase, error) {
	for p, n := range names {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown life phase %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("unknown life phase %d", int(p))
	}
	return []byte(p.String()), nil
}
