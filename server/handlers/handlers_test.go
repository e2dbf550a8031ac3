package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/phasetest/buildinfo"
	"github.com/nomis52/phasetest/history"
	"github.com/nomis52/phasetest/schedule"
	"github.com/nomis52/phasetest/status"
)

type mockRunner struct {
	started [][]string
	err     error
}

func (m *mockRunner) Start(groups []string) error {
	if m.err != nil {
		return m.err
	}
	m.started = append(m.started, groups)
	return nil
}

type mockHistory struct {
	entries []history.Entry
}

func (m *mockHistory) History() []history.Entry { return m.entries }

func (m *mockHistory) Get(id string) (history.Entry, bool) {
	for _, e := range m.entries {
		if e.RunID == id {
			return e, true
		}
	}
	return history.Entry{}, false
}

type mockStatus struct {
	running []string
}

func (m *mockStatus) Running() []string { return m.running }
func (m *mockStatus) All() []status.CaseStatus {
	return []status.CaseStatus{{Group: "arithmetic", Case: "TestAdd", State: status.Running}}
}
func (m *mockStatus) Groups() []status.GroupStatus {
	return []status.GroupStatus{{Group: "arithmetic", Phase: "running-testcases"}}
}

type mockSchedules struct{}

func (mockSchedules) Schedules() []schedule.Scheduled {
	return []schedule.Scheduled{{Groups: []string{"arithmetic"}, Schedule: "0 2 * * *", NextRun: time.Unix(0, 0).UTC()}}
}

type mockGroups map[string]bool

func (m mockGroups) Available() map[string]bool { return m }

func TestRunHandler(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		body        string
		runErr      error
		wantStatus  int
		wantStarted []string
		wantBody    string
	}{
		{
			name:        "query parameters",
			target:      "/run?group=arithmetic&group=strings",
			wantStatus:  http.StatusAccepted,
			wantStarted: []string{"arithmetic", "strings"},
			wantBody:    `{"groups":["arithmetic","strings"]}`,
		},
		{
			name:        "JSON body",
			target:      "/run",
			body:        `{"groups":["steps"]}`,
			wantStatus:  http.StatusAccepted,
			wantStarted: []string{"steps"},
		},
		{
			name:       "no group",
			target:     "/run",
			wantStatus: http.StatusBadRequest,
			wantBody:   "no test group given",
		},
		{
			name:       "invalid JSON",
			target:     "/run",
			body:       `{"groups":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid JSON",
		},
		{
			name:       "already running",
			target:     "/run?group=arithmetic",
			runErr:     fmt.Errorf("arithmetic: %w", ErrRunInProgress),
			wantStatus: http.StatusConflict,
			wantBody:   "already in progress",
		},
		{
			name:       "unknown group",
			target:     "/run?group=nope",
			runErr:     errors.New(`unknown test group "nope"`),
			wantStatus: http.StatusBadRequest,
			wantBody:   "unknown test group",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{err: tt.runErr}
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			NewRunHandler(runner).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			if tt.wantStarted != nil {
				require.Len(t, runner.started, 1)
				assert.Equal(t, tt.wantStarted, runner.started[0])
			} else {
				assert.Empty(t, runner.started)
			}
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHistoryHandler(t *testing.T) {
	provider := &mockHistory{entries: []history.Entry{
		{RunID: "2", Group: "strings", Status: "passed"},
		{RunID: "1", Group: "arithmetic", Status: "failed"},
	}}

	tests := []struct {
		name    string
		target  string
		wantIDs []string
	}{
		{name: "all", target: "/history", wantIDs: []string{"2", "1"}},
		{name: "one group", target: "/history?group=arithmetic", wantIDs: []string{"1"}},
		{name: "no match", target: "/history?group=nope", wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHistoryHandler(provider).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			require.Equal(t, http.StatusOK, w.Code)
			var got []history.Entry
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			ids := []string{}
			for _, e := range got {
				ids = append(ids, e.RunID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
	assert.Len(t, provider.entries, 2, "filtering leaves the provider's entries alone")
}

func TestRunDetailsHandler(t *testing.T) {
	provider := &mockHistory{entries: []history.Entry{{RunID: "abc", Group: "strings"}}}
	mux := http.NewServeMux()
	mux.Handle("GET /history/{id}", NewRunDetailsHandler(provider))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history/abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"group":"strings"`)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `run \"missing\" not found`)
}

func TestStatusHandler(t *testing.T) {
	tests := []struct {
		name      string
		running   []string
		schedules ScheduleProvider
		want      []string
	}{
		{
			name: "idle without schedules",
			want: []string{`"running":[]`, `"schedules":[]`, `"test_case":"TestAdd"`, `"phase":"running-testcases"`},
		},
		{
			name:      "running with schedules",
			running:   []string{"arithmetic"},
			schedules: mockSchedules{},
			want:      []string{`"running":["arithmetic"]`, `"schedule":"0 2 * * *"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statuses := &mockStatus{running: tt.running}
			w := httptest.NewRecorder()
			NewStatusHandler(statuses, statuses, tt.schedules).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			for _, s := range tt.want {
				assert.Contains(t, w.Body.String(), s)
			}
		})
	}
}

func TestGroupsHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NewGroupsHandler(mockGroups{"strings": true, "arithmetic": true}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/groups", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"groups":["arithmetic","strings"]}`, w.Body.String())
}

func TestInfoHandler(t *testing.T) {
	props := ServerProperties{
		Build:     buildinfo.Get(),
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Hostname:  "ci-1",
	}
	w := httptest.NewRecorder()
	NewInfoHandler(props).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hostname":"ci-1"`)
	assert.Contains(t, w.Body.String(), `"started_at":"2026-01-01T00:00:00Z"`)
	assert.Contains(t, w.Body.String(), `"version":"dev"`)
}
