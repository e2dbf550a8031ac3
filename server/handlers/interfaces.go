// Package handlers provides HTTP handlers for the phaserun server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"github.com/nomis52/phasetest/history"
	"github.com/nomis52/phasetest/schedule"
	"github.com/nomis52/phasetest/status"
)

// GroupRunner starts runs of named test groups in the background.
type GroupRunner interface {
	Start(groups []string) error
}

// GroupProvider lists the test groups that can be run.
type GroupProvider interface {
	Available() map[string]bool
}

// HistoryProvider provides access to run history.
type HistoryProvider interface {
	History() []history.Entry
	Get(runID string) (history.Entry, bool)
}

// StatusProvider provides the live status of test groups and test cases.
type StatusProvider interface {
	All() []status.CaseStatus
	Groups() []status.GroupStatus
}

// RunningProvider tells which test groups are running.
type RunningProvider interface {
	Running() []string
}

// ScheduleProvider lists the registered schedules.
type ScheduleProvider interface {
	Schedules() []schedule.Scheduled
}
