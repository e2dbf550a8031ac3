// Package history keeps the outcomes of past test group runs.
package history

import (
	"slices"
	"sync"
	"time"

	"github.com/nomis52/phasetest/logging"
	"github.com/nomis52/phasetest/runner"
)

// Entry is the stored form of one run of a test group.
type Entry struct {
	RunID    string        `json:"run_id"`
	Group    string        `json:"group"`
	Status   string        `json:"status"`
	Message  string        `json:"message"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	// Error is the fatal error that aborted the run. Empty otherwise.
	Error string      `json:"error,omitempty"`
	Cases []CaseEntry `json:"cases"`
}

// CaseEntry is the stored form of one test case run.
type CaseEntry struct {
	Name     string             `json:"name"`
	Status   string             `json:"status"`
	Message  string             `json:"message"`
	Duration time.Duration      `json:"duration"`
	Error    string             `json:"error,omitempty"`
	Logs     []logging.LogEntry `json:"logs,omitempty"`
}

// FromOutcome converts a run outcome into an Entry.
func FromOutcome(out *runner.Outcome) Entry {
	e := Entry{
		RunID:    out.RunID,
		Group:    out.Group,
		Status:   out.Result.Status(),
		Message:  out.Result.Message(),
		Started:  out.Started,
		Duration: out.Duration,
		Cases:    make([]CaseEntry, 0, len(out.Cases)),
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
	}
	for _, c := range out.Cases {
		ce := CaseEntry{
			Name:     c.Name,
			Status:   c.Result.Status(),
			Message:  c.Result.Message(),
			Duration: c.Duration,
			Logs:     out.Logs[c.Name],
		}
		if c.Err != nil {
			ce.Error = c.Err.Error()
		}
		e.Cases = append(e.Cases, ce)
	}
	return e
}

// Store manages run history.
type Store interface {
	// Save stores an entry.
	Save(Entry) error
	// History returns every stored entry, most recent first.
	History() []Entry
	// Get returns the entry of a run.
	Get(runID string) (Entry, bool)
}

// MemoryStore keeps run history in memory only (no persistence).
type MemoryStore struct {
	entries []Entry
	limit   int
	mu      sync.Mutex
}

// NewMemoryStore creates a new in-memory store keeping the limit most recent
// entries. A limit of zero or less keeps everything.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{
		entries: make([]Entry, 0),
		limit:   limit,
	}
}

// History returns all entries, most recent first.
func (s *MemoryStore) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Get returns the entry with the given run id.
func (s *MemoryStore) Get(runID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.RunID == runID {
			e.Cases = slices.Clone(e.Cases)
			return e, true
		}
	}
	return Entry{}, false
}

// Save stores an entry in memory, dropping the oldest one past the limit.
func (s *MemoryStore) Save(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Prepend to keep most recent first
	s.entries = append([]Entry{e}, s.entries...)
	if s.limit > 0 && len(s.entries) > s.limit {
		s.entries = s.entries[:s.limit]
	}
	return nil
}

// Recorder saves the outcome of every run to a Store.
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder saving to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record saves out. A nil outcome, from a run that could not be set up, is
// ignored.
func (r *Recorder) Record(out *runner.Outcome) error {
	if out == nil {
		return nil
	}
	return r.store.Save(FromOutcome(out))
}
