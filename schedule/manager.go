package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Runnable is implemented by anything that can run named test groups.
type Runnable interface {
	RunGroups(names []string) error
}

// Scheduled describes one registered schedule.
type Scheduled struct {
	Groups   []string  `json:"groups"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
}

// Manager manages several Triggers, each running its own test groups.
type Manager struct {
	specs    []Spec
	triggers []*Trigger
	logger   *slog.Logger
}

// NewManager creates a Trigger for every spec.
func NewManager(specs []Spec, runnable Runnable, logger *slog.Logger) (*Manager, error) {
	logger = logger.With("component", "schedule")

	triggers := make([]*Trigger, 0, len(specs))
	for _, spec := range specs {
		groups := spec.Groups
		trigger, err := NewTrigger(spec.CronSpec, func() error {
			return runnable.RunGroups(groups)
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating trigger for '%s:%s': %w",
				strings.Join(spec.Groups, groupListSeparator), spec.CronSpec, err)
		}
		triggers = append(triggers, trigger)

		logger.Info("schedule registered",
			"groups", spec.Groups,
			"schedule", spec.CronSpec,
			"next_run", trigger.NextRun(),
		)
	}

	return &Manager{
		specs:    specs,
		triggers: triggers,
		logger:   logger,
	}, nil
}

// Start launches all triggers. Each trigger runs in its own goroutine.
// Returns immediately. All goroutines exit when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	for _, trigger := range m.triggers {
		trigger.Start(ctx)
	}
}

// NextRun returns the earliest scheduled run time across all triggers.
// Returns zero time if there are no triggers.
func (m *Manager) NextRun() time.Time {
	var earliest time.Time
	for _, trigger := range m.triggers {
		next := trigger.NextRun()
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest
}

// Schedules returns every registered schedule with its next run time.
func (m *Manager) Schedules() []Scheduled {
	out := make([]Scheduled, len(m.triggers))
	for i, trigger := range m.triggers {
		out[i] = Scheduled{
			Groups:   m.specs[i].Groups,
			Schedule: m.specs[i].CronSpec,
			NextRun:  trigger.NextRun(),
		}
	}
	return out
}
