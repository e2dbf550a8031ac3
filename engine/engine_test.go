package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
	"github.com/nomis52/phasetest/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Helpers
// ---------------------------------------------------------------------

// fn is a processor assembled from closures.
type fn[C any] struct {
	processor.Base[C]
	phases []phase.Phase
	ready  func(ph phase.Phase, c C) processor.Readiness
	run    func(ph phase.Phase, c C) error
	back   func(ph phase.Phase) (phase.Phase, bool)
}

func (f *fn[C]) PhasesInterestedIn() []phase.Phase { return f.phases }

func (f *fn[C]) IsReadyToWork(ph phase.Phase, c C) processor.Readiness {
	if f.ready != nil {
		return f.ready(ph, c)
	}
	return f.ReadyOnce(ph)
}

func (f *fn[C]) Process(ph phase.Phase, c C) error {
	if f.run != nil {
		return f.run(ph, c)
	}
	return nil
}

func (f *fn[C]) BackToPhaseAfter(ph phase.Phase) (phase.Phase, bool) {
	if f.back != nil {
		return f.back(ph)
	}
	return 0, false
}

// recorder appends every phase it is called in.
func recorder[C any](phases []phase.Phase, seen *[]phase.Phase) *fn[C] {
	return &fn[C]{
		phases: phases,
		run: func(ph phase.Phase, _ C) error {
			*seen = append(*seen, ph)
			return nil
		},
	}
}

func setupWith(procs ...CaseProcessor) CaseSetup {
	return func(c *CaseContext) error {
		for _, p := range procs {
			if err := c.Register(p); err != nil {
				return err
			}
		}
		return nil
	}
}

func runCase(t *testing.T, procs ...CaseProcessor) (*CaseContext, result.TestResult, error) {
	t.Helper()
	g := NewGroupContext("group", nil, WithCaseSetup(setupWith(procs...)))
	c, err := g.NewCase("TestCase", nil)
	require.NoError(t, err)
	r, err := c.Run()
	return c, r, err
}

// Tests
// ---------------------------------------------------------------------

func TestCaseContext_VisitsPhasesInOrder(t *testing.T) {
	var seen []phase.Phase
	_, r, err := runCase(t, recorder[*CaseContext](phase.CasePhases(), &seen))

	require.NoError(t, err)
	assert.Equal(t, phase.CasePhases(), seen)
	assert.True(t, r.IsOK())
	assert.Equal(t, result.NoTestCasesMessage, r.Message())
}

func TestCaseContext_FixpointLoop(t *testing.T) {
	var order []string
	value := ""

	consumer := &fn[*CaseContext]{phases: []phase.Phase{phase.CallingTestCase}}
	consumer.ready = func(ph phase.Phase, _ *CaseContext) processor.Readiness {
		if value == "" || consumer.CalledForPhase(ph) {
			return processor.NotReady
		}
		return processor.Ready
	}
	consumer.run = func(phase.Phase, *CaseContext) error {
		order = append(order, "consumer:"+value)
		return nil
	}
	producer := &fn[*CaseContext]{
		phases: []phase.Phase{phase.CallingTestCase},
		run: func(phase.Phase, *CaseContext) error {
			order = append(order, "producer")
			value = "data"
			return nil
		},
	}

	_, _, err := runCase(t, consumer, producer)

	require.NoError(t, err)
	assert.Equal(t, []string{"producer", "consumer:data"}, order)
}

func TestCaseContext_ProcessorRegisteredMidPhase(t *testing.T) {
	var order []string
	late := &fn[*CaseContext]{
		phases: []phase.Phase{phase.CallingTestCase},
		run: func(phase.Phase, *CaseContext) error {
			order = append(order, "late")
			return nil
		},
	}
	early := &fn[*CaseContext]{
		phases: []phase.Phase{phase.CallingTestCase},
		run: func(_ phase.Phase, c *CaseContext) error {
			order = append(order, "early")
			return c.Register(late)
		},
	}

	_, _, err := runCase(t, early)

	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestCaseContext_ProcessorFaults(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		run     func(phase.Phase, *CaseContext) error
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "returned error",
			run:  func(phase.Phase, *CaseContext) error { return boom },
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, boom)
			},
		},
		{
			name: "panic with error",
			run:  func(phase.Phase, *CaseContext) error { panic(boom) },
			wantErr: func(t *testing.T, err error) {
				var pe *ProcessorError
				require.ErrorAs(t, err, &pe)
				assert.Same(t, boom, pe.Err, "invocation wrapper must be peeled")
			},
		},
		{
			name: "panic with value",
			run:  func(phase.Phase, *CaseContext) error { panic("bad state") },
			wantErr: func(t *testing.T, err error) {
				var pe *ProcessorError
				require.ErrorAs(t, err, &pe)
				assert.EqualError(t, pe.Err, "panic: bad state")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var later []phase.Phase
			failing := &fn[*CaseContext]{phases: []phase.Phase{phase.CallingTestCase}, run: tt.run}

			_, _, err := runCase(t, failing, recorder[*CaseContext]([]phase.Phase{phase.AfterTestCase}, &later))

			require.Error(t, err)
			var pe *ProcessorError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, phase.CallingTestCase, pe.Phase)
			assert.True(t, failing.CalledForPhase(phase.CallingTestCase), "called flag must be set on failure")
			assert.Empty(t, later)
			tt.wantErr(t, err)
		})
	}
}

func TestCaseContext_ContextBroken(t *testing.T) {
	broken := &fn[*CaseContext]{
		phases: []phase.Phase{phase.BeforeInvocation},
		ready: func(phase.Phase, *CaseContext) processor.Readiness {
			return processor.ContextIsBroken
		},
	}

	_, _, err := runCase(t, broken)

	var cbe *ContextBrokenError
	require.ErrorAs(t, err, &cbe)
	assert.Equal(t, phase.BeforeInvocation, cbe.Phase)
	assert.Equal(t, "TestCase", cbe.Context)
	assert.Equal(t, processor.IDOf(broken), cbe.Processor)
}

func TestCaseContext_NotApplicable(t *testing.T) {
	var seen []phase.Phase
	skip := &fn[*CaseContext]{
		phases: []phase.Phase{phase.BeforeInvocation},
		run: func(phase.Phase, *CaseContext) error {
			return NotApplicable("no database")
		},
	}

	c, r, err := runCase(t, skip, recorder[*CaseContext](phase.CasePhases(), &seen))

	require.NoError(t, err)
	assert.True(t, r.IsOK())
	assert.True(t, r.IsInapplicable())
	assert.Equal(t, "no database", r.Reason())
	assert.True(t, c.IsNotApplicable())
	assert.Equal(t, 0, c.Accumulator().Total(), "the signal does not touch the counters")
	assert.Equal(t, []phase.Phase{phase.BeforeTestCase, phase.SettingWhatToCall}, seen)
}

func TestCaseContext_BackJump(t *testing.T) {
	var seen []phase.Phase
	rows := 0
	jumper := &fn[*CaseContext]{
		phases: []phase.Phase{phase.SettingWhatToCall},
		run: func(phase.Phase, *CaseContext) error {
			rows++
			return nil
		},
		back: func(phase.Phase) (phase.Phase, bool) {
			return phase.ProcessingResult, rows < 3
		},
	}

	_, _, err := runCase(t, jumper, recorder[*CaseContext](phase.CasePhases(), &seen))

	require.NoError(t, err)
	variant := []phase.Phase{
		phase.SettingWhatToCall, phase.BeforeInvocation, phase.CallingTestCase,
		phase.AfterInvocation, phase.ProcessingResult,
	}
	want := []phase.Phase{phase.BeforeTestCase}
	for range 3 {
		want = append(want, variant...)
	}
	want = append(want, phase.AfterTestCase)
	assert.Equal(t, want, seen)
	assert.Equal(t, 3, rows)
}

func TestCaseContext_InvalidBackJump(t *testing.T) {
	tests := []struct {
		name   string
		target phase.Phase
	}{
		{name: "earlier phase", target: phase.BeforeTestCase},
		{name: "same phase", target: phase.CallingTestCase},
		{name: "other context flavor", target: phase.AfterTestGroup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fn[*CaseContext]{
				phases: []phase.Phase{phase.CallingTestCase},
				back:   func(phase.Phase) (phase.Phase, bool) { return tt.target, true },
			}

			_, _, err := runCase(t, p)

			var bje *BackJumpError
			require.ErrorAs(t, err, &bje)
			assert.Equal(t, phase.CallingTestCase, bje.From)
			assert.Equal(t, tt.target, bje.To)
		})
	}
}

func TestCaseContext_ArgsAreCopied(t *testing.T) {
	g := NewGroupContext("group", nil)
	c, err := g.NewCase("TestCase", nil)
	require.NoError(t, err)

	args := []any{1, "two"}
	c.SetArgs(args...)
	args[0] = 100
	got := c.Args()
	got[1] = "changed"

	assert.Equal(t, []any{1, "two"}, c.Args())

	assert.Equal(t, "TestCase", c.VariantName())
	c.SetVariant("row 1")
	assert.Equal(t, "TestCase[row 1]", c.VariantName())
}

func TestUnwrap(t *testing.T) {
	root := errors.New("root")
	empty := &InvocationError{Target: "t"}
	inner := fmt.Errorf("ctx: %w", &InvocationError{Target: "u", Err: root})

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "plain error", err: root, want: root},
		{name: "one layer", err: &InvocationError{Target: "t", Err: root}, want: root},
		{
			name: "nested layers",
			err:  &InvocationError{Target: "outer", Err: &InvocationError{Target: "inner", Err: root}},
			want: root,
		},
		{
			name: "wrapper below another error is kept",
			err:  &InvocationError{Target: "t", Err: inner},
			want: inner,
		},
		{name: "empty wrapper", err: empty, want: empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unwrap(tt.err))
		})
	}
}

func TestNotApplicableError(t *testing.T) {
	assert.EqualError(t, NotApplicable(""), "not applicable")
	assert.EqualError(t, NotApplicable("offline"), "not applicable: offline")
	assert.True(t, IsNotApplicable(fmt.Errorf("wrapped: %w", NotApplicable("x"))))
	assert.False(t, IsNotApplicable(errors.New("x")))
}
