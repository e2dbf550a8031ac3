package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
	"github.com/nomis52/phasetest/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Helpers
// ---------------------------------------------------------------------

// addCases returns a group processor adding the named test cases.
func addCases(names ...string) GroupProcessor {
	return &fn[*GroupContext]{
		phases: []phase.Phase{phase.TestCaseAdding},
		run: func(_ phase.Phase, g *GroupContext) error {
			for _, name := range names {
				if _, err := g.NewCase(name, nil); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func runCases() GroupProcessor {
	return &fn[*GroupContext]{
		phases: []phase.Phase{phase.RunningTestCases},
		run: func(_ phase.Phase, g *GroupContext) error {
			g.RunTestCases()
			return nil
		},
	}
}

// verdict records a per-case verdict produced by the verdicts function.
func verdict(order *[]string, verdicts func(name string) (result.TestResult, error)) CaseProcessor {
	return &fn[*CaseContext]{
		phases: []phase.Phase{phase.ProcessingResult},
		run: func(_ phase.Phase, c *CaseContext) error {
			*order = append(*order, c.Name())
			r, err := verdicts(c.Name())
			if err != nil {
				return err
			}
			c.AddExecutionResult(c.Name(), r)
			return nil
		},
	}
}

func newGroup(t *testing.T, caseProc CaseProcessor, opts []GroupOption, procs ...GroupProcessor) *GroupContext {
	t.Helper()
	opts = append(opts, WithCaseSetup(setupWith(caseProc)))
	g := NewGroupContext("group", nil, opts...)
	for _, p := range procs {
		require.NoError(t, g.Register(p))
	}
	return g
}

func allPass(string) (result.TestResult, error) { return result.Passed(""), nil }

// counter counts its calls per run; CleanupState starts a new count.
type counter struct {
	fn[*CaseContext]
	calls  int
	counts map[string]int
}

func (c *counter) PhasesInterestedIn() []phase.Phase {
	return []phase.Phase{phase.CallingTestCase, phase.AfterTestCase}
}

func (c *counter) Process(ph phase.Phase, cc *CaseContext) error {
	switch ph {
	case phase.CallingTestCase:
		c.calls++
		cc.AddExecutionResult(cc.Name(), result.Passed(""))
	case phase.AfterTestCase:
		c.counts[cc.Name()] = c.calls
	}
	return nil
}

func (c *counter) CleanupState() {
	c.fn.CleanupState()
	c.calls = 0
}

type recordingObserver struct {
	NopObserver
	started  []string
	finished map[string]result.TestResult
	calls    int
}

func (o *recordingObserver) ProcessorExecuted(Execution) { o.calls++ }

func (o *recordingObserver) CaseStarted(_, name string) { o.started = append(o.started, name) }

func (o *recordingObserver) CaseFinished(_, name string, r result.TestResult, _ time.Duration) {
	o.finished[name] = r
}

// Tests
// ---------------------------------------------------------------------

func TestGroupContext_VisitsPhasesInOrder(t *testing.T) {
	var seen []phase.Phase
	g := NewGroupContext("group", nil)
	require.NoError(t, g.Register(recorder[*GroupContext](phase.GroupPhases(), &seen)))

	r, err := g.Run()

	require.NoError(t, err)
	assert.Equal(t, phase.GroupPhases(), seen)
	assert.Equal(t, "Passed. "+result.NoTestCasesMessage, r.String())
}

func TestGroupContext_CaseOrder(t *testing.T) {
	names := []string{"delta", "alpha", "charlie", "bravo"}

	tests := []struct {
		name    string
		reverse bool
		want    []string
	}{
		{name: "ascending", want: []string{"alpha", "bravo", "charlie", "delta"}},
		{name: "descending", reverse: true, want: []string{"delta", "charlie", "bravo", "alpha"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			g := newGroup(t, verdict(&order, allPass), []GroupOption{WithReverseOrder(tt.reverse)},
				addCases(names...), runCases())

			r, err := g.Run()

			require.NoError(t, err)
			assert.Equal(t, tt.want, order)
			assert.Equal(t, "Passed. test cases: 4; all passed", r.String())
		})
	}
}

func TestGroupContext_Verdicts(t *testing.T) {
	tests := []struct {
		name     string
		cases    []string
		verdicts func(name string) (result.TestResult, error)
		want     string
		wantOK   bool
	}{
		{
			name:     "one passing case",
			cases:    []string{"TestA"},
			verdicts: allPass,
			want:     "test cases: 1; all passed",
			wantOK:   true,
		},
		{
			name:  "one of two fails",
			cases: []string{"TestA", "TestB"},
			verdicts: func(name string) (result.TestResult, error) {
				if name == "TestB" {
					return result.Failed("wrong answer"), nil
				}
				return result.Passed(""), nil
			},
			want: "test cases: 2; passed: 1; failed: 1; failed: [TestB]",
		},
		{
			name:  "all three fail",
			cases: []string{"TestA", "TestB", "TestC"},
			verdicts: func(string) (result.TestResult, error) {
				return result.Failed("no"), nil
			},
			want: "test cases: 3; all failed",
		},
		{
			name:  "fatal case error is contained",
			cases: []string{"TestA", "TestB"},
			verdicts: func(name string) (result.TestResult, error) {
				if name == "TestA" {
					return result.TestResult{}, errors.New("database vanished")
				}
				return result.Passed(""), nil
			},
			want: "test cases: 2; passed: 1; failed: 1; failed: [TestA]",
		},
		{
			name:  "inapplicable case among others",
			cases: []string{"TestA", "TestB", "TestC"},
			verdicts: func(name string) (result.TestResult, error) {
				if name == "TestB" {
					return result.TestResult{}, NotApplicable("needs network")
				}
				return result.Passed(""), nil
			},
			want:   "test cases: 3; passed: 2; not applicable: 1",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			g := newGroup(t, verdict(&order, tt.verdicts), nil, addCases(tt.cases...), runCases())

			r, err := g.Run()

			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Message())
			assert.Equal(t, tt.wantOK, r.IsOK())
			assert.Len(t, g.Executions(), len(tt.cases))
		})
	}
}

func TestGroupContext_FatalCaseErrorIsRecorded(t *testing.T) {
	var order []string
	g := newGroup(t, verdict(&order, func(string) (result.TestResult, error) {
		return result.TestResult{}, errors.New("boom")
	}), nil, addCases("TestA"), runCases())

	_, err := g.Run()
	require.NoError(t, err)

	execs := g.Executions()
	require.Len(t, execs, 1)
	var pe *ProcessorError
	require.ErrorAs(t, execs[0].Err, &pe)
	assert.Equal(t, phase.ProcessingResult, pe.Phase)
	assert.False(t, execs[0].Result.IsOK())
	assert.Contains(t, execs[0].Result.Message(), "boom")
}

func TestGroupContext_GroupPhaseErrorAbortsRun(t *testing.T) {
	boom := errors.New("setup failed")
	var order []string
	failing := &fn[*GroupContext]{
		phases: []phase.Phase{phase.BeforeTestGroup},
		run:    func(phase.Phase, *GroupContext) error { return boom },
	}
	g := newGroup(t, verdict(&order, allPass), nil, failing, addCases("TestA"), runCases())

	_, err := g.Run()

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, order)
}

func TestGroupContext_NotApplicable(t *testing.T) {
	var order []string
	skip := &fn[*GroupContext]{
		phases: []phase.Phase{phase.BeforeTestGroup},
		run:    func(phase.Phase, *GroupContext) error { return NotApplicable("wrong platform") },
	}
	g := newGroup(t, verdict(&order, allPass), nil, skip, addCases("TestA"), runCases())

	r, err := g.Run()

	require.NoError(t, err)
	assert.True(t, r.IsInapplicable())
	assert.Equal(t, "wrong platform", r.Reason())
	assert.Empty(t, order)
}

func TestGroupContext_RerunIsIdempotent(t *testing.T) {
	shared := &counter{counts: make(map[string]int)}
	g := newGroup(t, shared, nil, addCases("TestA", "TestB", "TestC"), runCases())

	for run := range 2 {
		clear(shared.counts)

		r, err := g.Run()

		require.NoError(t, err, "run %d", run)
		assert.Equal(t, "test cases: 3; all passed", r.Message(), "run %d", run)
		assert.Equal(t, map[string]int{"TestA": 1, "TestB": 1, "TestC": 1}, shared.counts, "run %d", run)
	}
}

func TestGroupContext_NewCase(t *testing.T) {
	g := NewGroupContext("group", nil)

	_, err := g.NewCase("TestA", nil)
	require.NoError(t, err)
	_, err = g.NewCase("TestA", nil)
	assert.Error(t, err)

	setupErr := errors.New("no processors")
	g = NewGroupContext("group", nil, WithCaseSetup(func(*CaseContext) error { return setupErr }))
	_, err = g.NewCase("TestA", nil)
	assert.ErrorIs(t, err, setupErr)
	_, ok := g.Case("TestA")
	assert.False(t, ok)
}

func TestGroupContext_RemoveCase(t *testing.T) {
	g := NewGroupContext("group", nil)
	_, err := g.NewCase("TestA", nil)
	require.NoError(t, err)

	assert.True(t, g.RemoveCase("TestA"))
	assert.False(t, g.RemoveCase("TestA"))
	assert.Empty(t, g.Cases())
}

func TestGroupContext_Observer(t *testing.T) {
	var order []string
	obs := &recordingObserver{finished: make(map[string]result.TestResult)}
	g := newGroup(t, verdict(&order, allPass), []GroupOption{WithObserver(obs)},
		addCases("TestB", "TestA"), runCases())

	_, err := g.Run()

	require.NoError(t, err)
	assert.Equal(t, []string{"TestA", "TestB"}, obs.started)
	assert.Len(t, obs.finished, 2)
	// adder, runner and one verdict per case
	assert.Equal(t, 4, obs.calls)
}

func TestGroupContext_ProcessorsInUse(t *testing.T) {
	var order []string
	adder := addCases("TestA")
	g := newGroup(t, verdict(&order, allPass), nil, adder, runCases())

	_, err := g.Run()
	require.NoError(t, err)

	ids := g.ProcessorsInUse()
	assert.Contains(t, ids, processor.IDOf(adder))
	assert.Contains(t, ids, processor.IDFor[fn[*CaseContext]]())
}
