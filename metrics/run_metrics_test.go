package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/phasetest/engine"
	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/result"
)

func newTestRunMetrics(t *testing.T) (*RunMetrics, *ScrapeRegistry) {
	t.Helper()
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)
	m, err := NewRunMetrics(reg)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	return m, reg
}

func scrape(t *testing.T, reg *ScrapeRegistry) string {
	t.Helper()
	w := httptest.NewRecorder()
	reg.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewRunMetrics_Twice(t *testing.T) {
	reg, err := NewScrapeRegistry()
	require.NoError(t, err)
	_, err = NewRunMetrics(reg)
	require.NoError(t, err)

	_, err = NewRunMetrics(reg)
	assert.ErrorContains(t, err, "creating runs counter")
}

func TestRunMetrics_ProcessorExecuted(t *testing.T) {
	m, reg := newTestRunMetrics(t)

	m.ProcessorExecuted(engine.Execution{Phase: phase.CallingTestCase})
	m.ProcessorExecuted(engine.Execution{Phase: phase.CallingTestCase})
	m.ProcessorExecuted(engine.Execution{Phase: phase.SettingWhatToCall, Err: engine.NotApplicable("no argument rows")})
	m.ProcessorExecuted(engine.Execution{Phase: phase.BeforeTestGroup, Err: errors.New("boom")})

	body := scrape(t, reg)
	assert.Contains(t, body, `phasetest_processor_executions_total{outcome="ok",phase="calling-testcase"} 2`)
	assert.Contains(t, body, `phasetest_processor_executions_total{outcome="not_applicable",phase="setting-what-to-call"} 1`)
	assert.Contains(t, body, `phasetest_processor_executions_total{outcome="error",phase="before-testgroup"} 1`)
}

func TestRunMetrics_Cases(t *testing.T) {
	m, reg := newTestRunMetrics(t)

	m.CaseStarted("Arithmetic", "TestAdd")
	m.CaseFinished("Arithmetic", "TestAdd", result.Passed(""), 10*time.Millisecond)
	m.CaseFinished("Arithmetic", "TestSub", result.Failed("expected 1, got 2"), 20*time.Millisecond)
	m.CaseFinished("Arithmetic", "TestDiv", result.Inapplicable("offline"), time.Millisecond)
	m.RecordVariant("Arithmetic", "TestAdd[1]", result.Passed(""))
	m.RecordVariant("Arithmetic", "TestAdd[2]", result.Passed(""))

	body := scrape(t, reg)
	assert.Contains(t, body, `phasetest_test_cases_total{group="Arithmetic",status="passed"} 1`)
	assert.Contains(t, body, `phasetest_test_cases_total{group="Arithmetic",status="failed"} 1`)
	assert.Contains(t, body, `phasetest_test_cases_total{group="Arithmetic",status="not_applicable"} 1`)
	assert.Contains(t, body, `phasetest_test_case_duration_seconds_count{group="Arithmetic"} 3`)
	assert.Contains(t, body, `phasetest_variants_total{group="Arithmetic",status="passed"} 2`)
}

func TestRunMetrics_RecordRun(t *testing.T) {
	m, reg := newTestRunMetrics(t)

	m.RecordRun("Arithmetic", result.Passed("test cases: 1; all passed"), nil)
	m.RecordRun("Arithmetic", result.Failed("boom"), errors.New("boom"))

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)
	var runs int
	for _, f := range families {
		if f.GetName() == "phasetest_runs_total" {
			runs = len(f.GetMetric())
		}
	}
	assert.Equal(t, 2, runs)

	body := scrape(t, reg)
	assert.Contains(t, body, `phasetest_runs_total{group="Arithmetic",status="passed"} 1`)
	assert.Contains(t, body, `phasetest_runs_total{group="Arithmetic",status="error"} 1`)
	assert.Contains(t, body, `phasetest_last_run_timestamp_seconds{group="Arithmetic"} 1.7e+09`)
}

func TestRunMetrics_IsObserver(t *testing.T) {
	m, _ := newTestRunMetrics(t)
	var _ engine.Observer = m
}
