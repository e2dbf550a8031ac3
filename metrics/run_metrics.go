package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/phasetest/engine"
	"github.com/nomis52/phasetest/result"
)

// StatusError labels runs aborted by a fatal error.
const StatusError = "error"

// RunMetrics records test group runs. It implements engine.Observer and
// processors.VariantRecorder.
type RunMetrics struct {
	runs        CounterVec
	testCases   CounterVec
	variants    CounterVec
	executions  CounterVec
	caseSeconds HistogramVec
	lastRun     GaugeVec
	now         func() time.Time
}

// NewRunMetrics creates the run metrics in reg.
//
// Metrics:
//   - phasetest_runs_total{group,status}
//   - phasetest_test_cases_total{group,status}
//   - phasetest_variants_total{group,status}
//   - phasetest_processor_executions_total{phase,outcome}
//   - phasetest_test_case_duration_seconds{group}
//   - phasetest_last_run_timestamp_seconds{group}
func NewRunMetrics(reg Registry) (*RunMetrics, error) {
	m := &RunMetrics{now: time.Now}
	var err error

	if m.runs, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "phasetest_runs_total",
		Help: "Test group runs by verdict status",
	}, []string{"group", "status"}); err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}

	if m.testCases, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "phasetest_test_cases_total",
		Help: "Finished test cases by verdict status",
	}, []string{"group", "status"}); err != nil {
		return nil, fmt.Errorf("creating test cases counter: %w", err)
	}

	if m.variants, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "phasetest_variants_total",
		Help: "Classified test case variants (argument rows) by verdict status",
	}, []string{"group", "status"}); err != nil {
		return nil, fmt.Errorf("creating variants counter: %w", err)
	}

	if m.executions, err = reg.NewCounterVec(prometheus.CounterOpts{
		Name: "phasetest_processor_executions_total",
		Help: "Processor calls by life phase and outcome",
	}, []string{"phase", "outcome"}); err != nil {
		return nil, fmt.Errorf("creating processor executions counter: %w", err)
	}

	if m.caseSeconds, err = reg.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "phasetest_test_case_duration_seconds",
		Help:    "Duration of test case runs",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"group"}); err != nil {
		return nil, fmt.Errorf("creating test case duration histogram: %w", err)
	}

	if m.lastRun, err = reg.NewGaugeVec(prometheus.GaugeOpts{
		Name: "phasetest_last_run_timestamp_seconds",
		Help: "Unix timestamp of the last finished run of a test group",
	}, []string{"group"}); err != nil {
		return nil, fmt.Errorf("creating last run gauge: %w", err)
	}

	return m, nil
}

// ProcessorExecuted counts one processor call.
func (m *RunMetrics) ProcessorExecuted(e engine.Execution) {
	outcome := "ok"
	switch {
	case engine.IsNotApplicable(e.Err):
		outcome = "not_applicable"
	case e.Err != nil:
		outcome = StatusError
	}
	m.executions.With(prometheus.Labels{"phase": e.Phase.String(), "outcome": outcome}).Inc()
}

// CaseStarted does nothing.
func (m *RunMetrics) CaseStarted(string, string) {}

// CaseFinished counts a finished test case and observes its duration.
func (m *RunMetrics) CaseFinished(group, _ string, r result.TestResult, d time.Duration) {
	m.testCases.With(prometheus.Labels{"group": group, "status": r.Status()}).Inc()
	m.caseSeconds.With(prometheus.Labels{"group": group}).Observe(d.Seconds())
}

// RecordVariant counts one classified variant.
func (m *RunMetrics) RecordVariant(group, _ string, r result.TestResult) {
	m.variants.With(prometheus.Labels{"group": group, "status": r.Status()}).Inc()
}

// RecordRun counts a finished run. A run aborted by err is counted with
// the status "error".
func (m *RunMetrics) RecordRun(group string, r result.TestResult, err error) {
	status := r.Status()
	if err != nil {
		status = StatusError
	}
	m.runs.With(prometheus.Labels{"group": group, "status": status}).Inc()
	m.lastRun.With(prometheus.Labels{"group": group}).Set(float64(m.now().Unix()))
}
