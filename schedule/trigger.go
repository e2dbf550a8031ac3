// Package schedule runs test groups on cron schedules.
//
// A Trigger calls a function according to a cron schedule. It is designed
// to be started once and run until the context is cancelled.
//
// Example usage:
//
//	specs, err := schedule.ParseSpecs("arithmetic,strings:0 2 * * *", available)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	manager, err := schedule.NewManager(specs, groupRunner, logger)
//	manager.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()        // Wait for shutdown signal
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Trigger calls a function according to a cron schedule.
type Trigger struct {
	spec     string
	schedule cron.Schedule
	fn       func() error
	logger   *slog.Logger
}

// NewTrigger creates a new Trigger with the given cron specification.
// The spec follows standard cron format (5 fields: minute, hour, day, month, weekday).
// Returns ErrInvalidCronSpec if the specification cannot be parsed.
func NewTrigger(spec string, fn func() error, logger *slog.Logger) (*Trigger, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	return &Trigger{
		spec:     spec,
		schedule: schedule,
		fn:       fn,
		logger:   logger,
	}, nil
}

// Start launches a goroutine that calls the function according to the cron
// schedule. Returns immediately. The goroutine exits when ctx is cancelled.
func (t *Trigger) Start(ctx context.Context) {
	go t.loop(ctx)
}

// NextRun returns the next scheduled run time from now.
func (t *Trigger) NextRun() time.Time {
	return t.schedule.Next(time.Now())
}

func (t *Trigger) loop(ctx context.Context) {
	for {
		nextRun := t.schedule.Next(time.Now())
		wait := time.NewTimer(time.Until(nextRun))

		t.logger.Debug("waiting for next scheduled run", "next_run", nextRun, "schedule", t.spec)

		select {
		case <-ctx.Done():
			wait.Stop()
			t.logger.Info("schedule trigger shutting down", "schedule", t.spec)
			return
		case <-wait.C:
			t.fire()
		}
	}
}

func (t *Trigger) fire() {
	t.logger.Info("starting scheduled run", "schedule", t.spec)

	if err := t.fn(); err != nil {
		t.logger.Warn("scheduled run completed with error", "schedule", t.spec, "error", err)
	} else {
		t.logger.Info("scheduled run completed successfully", "schedule", t.spec)
	}
}
