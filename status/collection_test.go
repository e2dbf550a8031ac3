package status

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/phasetest/engine"
	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/result"
)

func newTestCollection() *Collection {
	sc := NewCollection(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return sc
}

func TestNewCollection(t *testing.T) {
	sc := newTestCollection()
	assert.Empty(t, sc.All())
	assert.Empty(t, sc.Groups())
	var _ engine.Observer = sc
}

func TestCollection_CaseLifecycle(t *testing.T) {
	sc := newTestCollection()

	sc.CaseStarted("Arithmetic", "TestAdd")
	sc.ProcessorExecuted(engine.Execution{Group: "Arithmetic", Case: "TestAdd", Phase: phase.CallingTestCase})

	s, ok := sc.Get("Arithmetic", "TestAdd")
	require.True(t, ok)
	assert.Equal(t, Running, s.State)
	assert.Equal(t, "calling-testcase", s.Phase)
	assert.Len(t, sc.Running(), 1)

	sc.CaseFinished("Arithmetic", "TestAdd", result.Failed("expected 3, got 4"), time.Second)

	s, ok = sc.Get("Arithmetic", "TestAdd")
	require.True(t, ok)
	assert.Equal(t, Failed, s.State)
	assert.Equal(t, "expected 3, got 4", s.Message)
	assert.Equal(t, time.Second, s.Duration)
	assert.Empty(t, s.Phase)
	assert.Empty(t, sc.Running())

	// Late processor events do not reopen a finished test case.
	sc.ProcessorExecuted(engine.Execution{Group: "Arithmetic", Case: "TestAdd", Phase: phase.AfterTestCase})
	s, _ = sc.Get("Arithmetic", "TestAdd")
	assert.Equal(t, Failed, s.State)
}

func TestCollection_States(t *testing.T) {
	tests := []struct {
		name   string
		result result.TestResult
		want   State
	}{
		{"passed", result.Passed(""), Passed},
		{"failed", result.Failed("boom"), Failed},
		{"not applicable", result.Inapplicable("offline"), NotApplicable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newTestCollection()
			sc.CaseFinished("g", "TestX", tt.result, 0)
			s, ok := sc.Get("g", "TestX")
			require.True(t, ok)
			assert.Equal(t, tt.want, s.State)
		})
	}
}

func TestCollection_Groups(t *testing.T) {
	sc := newTestCollection()

	sc.ProcessorExecuted(engine.Execution{Group: "B", Phase: phase.LoggingInit})
	sc.ProcessorExecuted(engine.Execution{Group: "A", Phase: phase.LoggingInit})
	sc.ProcessorExecuted(engine.Execution{Group: "A", Phase: phase.BeforeTestGroup, Err: errors.New("no database")})
	sc.ProcessorExecuted(engine.Execution{Group: "A", Phase: phase.AfterTestGroup})
	sc.ProcessorExecuted(engine.Execution{Group: "B", Phase: phase.TestCaseRemoving, Err: engine.NotApplicable("excluded")})

	groups := sc.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].Group)
	assert.Equal(t, "after-testgroup", groups[0].Phase)
	assert.Equal(t, "no database", groups[0].Error, "an error sticks until the next run")
	assert.Equal(t, "B", groups[1].Group)
	assert.Empty(t, groups[1].Error)
}

func TestCollection_NewRunReplacesOldStatuses(t *testing.T) {
	sc := newTestCollection()
	sc.CaseFinished("A", "TestOld", result.Passed(""), 0)
	sc.CaseFinished("B", "TestOther", result.Passed(""), 0)

	sc.ProcessorExecuted(engine.Execution{Group: "A", Phase: phase.LoggingInit})
	sc.CaseStarted("A", "TestNew")

	all := sc.All()
	require.Len(t, all, 2)
	assert.Equal(t, "TestNew", all[0].Case)
	assert.Equal(t, "TestOther", all[1].Case)
}

func TestCollection_Concurrent(t *testing.T) {
	sc := newTestCollection()

	var wg sync.WaitGroup
	for _, group := range []string{"A", "B", "C", "D"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, name := range []string{"TestOne", "TestTwo", "TestThree"} {
				sc.CaseStarted(group, name)
				sc.ProcessorExecuted(engine.Execution{Group: group, Case: name, Phase: phase.CallingTestCase})
				sc.CaseFinished(group, name, result.Passed(""), time.Millisecond)
				_ = sc.All()
			}
		}()
	}
	wg.Wait()

	all := sc.All()
	assert.Len(t, all, 12)
	assert.Equal(t, "A", all[0].Group)
	assert.Equal(t, "TestOne", all[0].Case)
}
