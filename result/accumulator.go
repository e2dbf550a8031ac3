package result

import (
	"fmt"
	"slices"
	"strings"
)

// NoTestCasesMessage is the whole summary when nothing was accumulated.
const NoTestCasesMessage = "No test cases found (or all test cases excluded.)"

// Level selects how an Accumulator turns its counters into a final result.
type Level int

const (
	// CaseLevel aggregates the variants (e.g. argument rows) of one test case.
	CaseLevel Level = iota
	// GroupLevel aggregates all test cases of one test group.
	GroupLevel
)

// String returns a human-readable representation of the Level.
func (l Level) String() string {
	switch l {
	case CaseLevel:
		return "case"
	case GroupLevel:
		return "group"
	default:
		return "unknown"
	}
}

// Accumulator folds a stream of named results into one summary verdict.
type Accumulator struct {
	level         Level
	total         int
	passed        int
	failed        int
	notApplicable int
	failedNames   []string
	last          TestResult
}

// NewAccumulator creates an empty accumulator for the given level.
func NewAccumulator(level Level) *Accumulator {
	return &Accumulator{level: level}
}

// Add records one named outcome.
func (a *Accumulator) Add(name string, r TestResult) {
	a.total++
	a.last = r
	if !r.IsOK() {
		a.failed++
		a.failedNames = append(a.failedNames, name)
		return
	}
	// An inapplicable result is counted as passed first and then reclassified.
	a.passed++
	if r.IsInapplicable() {
		a.recordNotApplicable()
	}
}

func (a *Accumulator) recordNotApplicable() {
	a.notApplicable++
	a.passed--
}

// Level returns the aggregation level.
func (a *Accumulator) Level() Level { return a.level }

// Total returns how many results were added.
func (a *Accumulator) Total() int { return a.total }

// Passed returns how many OK results were added, not counting inapplicable ones.
func (a *Accumulator) Passed() int { return a.passed }

// Failed returns how many FAILURE results were added.
func (a *Accumulator) Failed() int { return a.failed }

// NotApplicable returns how many inapplicable results were added.
func (a *Accumulator) NotApplicable() int { return a.notApplicable }

// Last returns the most recently added result.
func (a *Accumulator) Last() (TestResult, bool) {
	return a.last, a.total > 0
}

// FailedNames returns the names of failed results in insertion order.
func (a *Accumulator) FailedNames() []string {
	return slices.Clone(a.failedNames)
}

// Summary returns the counter summary, e.g. "test cases: 2; passed: 1; failed: 1".
func (a *Accumulator) Summary() string {
	if a.total == 0 {
		return NoTestCasesMessage
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "test cases: %d", a.total)
	writeCount(&sb, "passed", a.passed, a.total)
	writeCount(&sb, "failed", a.failed, a.total)
	writeCount(&sb, "not applicable", a.notApplicable, a.total)
	return sb.String()
}

func writeCount(sb *strings.Builder, label string, n, total int) {
	switch {
	case n <= 0:
	case n == total:
		fmt.Fprintf(sb, "; all %s", label)
	default:
		fmt.Fprintf(sb, "; %s: %d", label, n)
	}
}

// FinalResult returns the aggregated verdict for the accumulator's level.
func (a *Accumulator) FinalResult() TestResult {
	if a.level == GroupLevel {
		return a.groupResult()
	}
	return a.caseResult()
}

func (a *Accumulator) caseResult() TestResult {
	if a.total == 1 {
		if a.notApplicable == 1 && !a.last.IsInapplicable() {
			return Inapplicable(a.last.Message())
		}
		return a.last
	}
	return a.classify(a.Summary())
}

func (a *Accumulator) groupResult() TestResult {
	summary := a.Summary()
	if a.failed > 0 && a.failed < a.total {
		summary += fmt.Sprintf("; failed: [%s]", strings.Join(a.failedNames, ", "))
	}
	return a.classify(summary)
}

func (a *Accumulator) classify(message string) TestResult {
	switch {
	case a.failed > 0:
		return Failed(message)
	case a.total > 0 && a.notApplicable == a.total:
		return Inapplicable(message)
	default:
		return Passed(message)
	}
}
