// Package status keeps the live status of the test cases being run, for
// display by the server while runs are in progress.
//
// A Collection is an engine.Observer: hand it to runner.WithObserver and it
// follows every run of every test group.
//
// THREAD SAFETY:
// All methods are thread-safe. Runs of different test groups may report to
// the same Collection concurrently.
package status

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nomis52/phasetest/engine"
	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/result"
)

// State is where a test case is in its run.
type State string

const (
	Running       State = "running"
	Passed        State = "passed"
	Failed        State = "failed"
	NotApplicable State = "not_applicable"
)

// CaseStatus is the last known status of one test case.
type CaseStatus struct {
	Group    string        `json:"group"`
	Case     string        `json:"test_case"`
	State    State         `json:"state"`
	Phase    string        `json:"phase,omitempty"`
	Message  string        `json:"message,omitempty"`
	Updated  time.Time     `json:"updated"`
	Duration time.Duration `json:"duration,omitempty"`
}

// GroupStatus is the phase a test group reached in its latest run.
type GroupStatus struct {
	Group   string    `json:"group"`
	Phase   string    `json:"phase"`
	Error   string    `json:"error,omitempty"`
	Updated time.Time `json:"updated"`
}

type caseKey struct {
	group string
	name  string
}

// Collection stores the status of every test case seen, keyed by group and
// test case name.
type Collection struct {
	mu     sync.RWMutex
	cases  map[caseKey]CaseStatus
	groups map[string]GroupStatus
	logger *slog.Logger
	now    func() time.Time
}

// NewCollection creates an empty Collection. Each status change is logged
// at Debug level.
func NewCollection(logger *slog.Logger) *Collection {
	return &Collection{
		cases:  make(map[caseKey]CaseStatus),
		groups: make(map[string]GroupStatus),
		logger: logger.With("component", "status"),
		now:    time.Now,
	}
}

// ProcessorExecuted tracks the phase a test group or test case is in. A new
// run of a test group replaces the case statuses of its previous run.
func (sc *Collection) ProcessorExecuted(e engine.Execution) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if e.Case == "" {
		if e.Phase == phase.LoggingInit {
			sc.dropGroup(e.Group)
		}
		g := GroupStatus{Group: e.Group, Phase: e.Phase.String(), Updated: sc.now()}
		if e.Err != nil && !engine.IsNotApplicable(e.Err) {
			g.Error = e.Err.Error()
		} else if prev, ok := sc.groups[e.Group]; ok && prev.Error != "" {
			g.Error = prev.Error
		}
		sc.groups[e.Group] = g
		return
	}

	k := caseKey{e.Group, e.Case}
	s, ok := sc.cases[k]
	if !ok || s.State != Running {
		return
	}
	s.Phase = e.Phase.String()
	s.Updated = sc.now()
	sc.cases[k] = s
}

func (sc *Collection) dropGroup(group string) {
	for k := range sc.cases {
		if k.group == group {
			delete(sc.cases, k)
		}
	}
	delete(sc.groups, group)
}

// CaseStarted marks a test case as running.
func (sc *Collection) CaseStarted(group, name string) {
	sc.set(CaseStatus{Group: group, Case: name, State: Running})
}

// CaseFinished records the verdict of a test case.
func (sc *Collection) CaseFinished(group, name string, r result.TestResult, d time.Duration) {
	state := Passed
	switch {
	case r.IsInapplicable():
		state = NotApplicable
	case !r.IsOK():
		state = Failed
	}
	sc.set(CaseStatus{
		Group:    group,
		Case:     name,
		State:    state,
		Message:  r.Message(),
		Duration: d,
	})
}

func (sc *Collection) set(s CaseStatus) {
	sc.logger.Debug("test case status", "test_group", s.Group, "test_case", s.Case, "state", s.State)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	s.Updated = sc.now()
	sc.cases[caseKey{s.Group, s.Case}] = s
}

// Get returns the status of one test case.
func (sc *Collection) Get(group, name string) (CaseStatus, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	s, ok := sc.cases[caseKey{group, name}]
	return s, ok
}

// All returns a copy of every test case status, ordered by group and name.
func (sc *Collection) All() []CaseStatus {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	out := slices.Collect(maps.Values(sc.cases))
	slices.SortFunc(out, func(a, b CaseStatus) int {
		return cmp.Or(cmp.Compare(a.Group, b.Group), cmp.Compare(a.Case, b.Case))
	})
	return out
}

// Groups returns a copy of every test group status, ordered by name.
func (sc *Collection) Groups() []GroupStatus {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	out := slices.Collect(maps.Values(sc.groups))
	slices.SortFunc(out, func(a, b GroupStatus) int {
		return cmp.Compare(a.Group, b.Group)
	})
	return out
}

// Running returns the test cases currently running.
func (sc *Collection) Running() []CaseStatus {
	var out []CaseStatus
	for _, s := range sc.All() {
		if s.State == Running {
			out = append(out, s)
		}
	}
	return out
}
