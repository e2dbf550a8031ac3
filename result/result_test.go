package result

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestResult_String(t *testing.T) {
	tests := []struct {
		name   string
		result TestResult
		want   string
	}{
		{name: "passed", result: Passed("test cases: 1; all passed"), want: "Passed. test cases: 1; all passed"},
		{name: "failed", result: Failed("test cases: 3; all failed"), want: "Failed. test cases: 3; all failed"},
		{name: "inapplicable", result: Inapplicable("needs linux"), want: "Passed. needs linux"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.String())
		})
	}
}

func TestTestResult_Inapplicable(t *testing.T) {
	r := Inapplicable("no database")

	assert.True(t, r.IsOK())
	assert.True(t, r.IsInapplicable())
	assert.Equal(t, TypeOK, r.Type())
	assert.Equal(t, "no database", r.Reason())
	assert.Equal(t, "not_applicable", r.Status())

	assert.Equal(t, "", Passed("fine").Reason())
	assert.Equal(t, "passed", Passed("fine").Status())
	assert.Equal(t, "failed", Failed("boom").Status())
}

func TestTestResult_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Failed("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"failed","message":"boom"}`, string(data))
}

func TestCaseResult(t *testing.T) {
	var cr CaseResult

	_, ok := cr.Fault()
	assert.False(t, ok)

	cr.SetFault(errors.New("boom"))
	cr.SetReturnValue(42)
	cr.MarkInvoked()

	fault, ok := cr.Fault()
	require.True(t, ok)
	assert.EqualError(t, fault, "boom")
	v, ok := cr.ReturnValue()
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.True(t, cr.Invoked())

	cr.ClearFault()
	_, ok = cr.Fault()
	assert.False(t, ok)

	cr.Reset()
	_, ok = cr.ReturnValue()
	assert.False(t, ok)
	assert.False(t, cr.Invoked())
}
