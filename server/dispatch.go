package server

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nomis52/phasetest/history"
	"github.com/nomis52/phasetest/metrics"
	"github.com/nomis52/phasetest/result"
	"github.com/nomis52/phasetest/runner"
	"github.com/nomis52/phasetest/server/handlers"
	"github.com/nomis52/phasetest/suites"
)

// Dispatcher runs named test groups from the catalog, one run per group at
// a time. Different groups may run concurrently.
type Dispatcher struct {
	runner   *runner.Runner
	catalog  *suites.Catalog
	recorder *history.Recorder
	metrics  *metrics.RunMetrics
	args     []string
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. m may be nil.
func NewDispatcher(r *runner.Runner, catalog *suites.Catalog, recorder *history.Recorder, m *metrics.RunMetrics, args []string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		runner:   r,
		catalog:  catalog,
		recorder: recorder,
		metrics:  m,
		args:     args,
		logger:   logger.With("component", "dispatcher"),
		running:  make(map[string]bool),
	}
}

// RunGroups runs the test groups one after the other and returns once they
// all finished. Fatal run errors are joined into the returned error.
func (d *Dispatcher) RunGroups(names []string) error {
	if err := d.claim(names); err != nil {
		return err
	}
	return d.run(names)
}

// Start runs the test groups in the background. It returns
// handlers.ErrRunInProgress if one of them is already running.
func (d *Dispatcher) Start(names []string) error {
	if err := d.claim(names); err != nil {
		return err
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.run(names); err != nil {
			d.logger.Error("background run failed", "groups", names, "error", err)
		}
	}()
	return nil
}

// Running returns the names of the test groups being run, sorted.
func (d *Dispatcher) Running() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.running))
	for name := range d.running {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Wait blocks until every background run finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) claim(names []string) error {
	if len(names) == 0 {
		return errors.New("no test group given")
	}
	available := d.catalog.Available()
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !available[name] {
			return fmt.Errorf("unknown test group %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate test group %q", name)
		}
		seen[name] = true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range names {
		if d.running[name] {
			return fmt.Errorf("%w: %s", handlers.ErrRunInProgress, name)
		}
	}
	for _, name := range names {
		d.running[name] = true
	}
	return nil
}

func (d *Dispatcher) release(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.running, name)
}

func (d *Dispatcher) run(names []string) error {
	var errs []error
	for _, name := range names {
		if err := d.runOne(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) runOne(name string) error {
	defer d.release(name)

	group, err := d.catalog.New(name)
	if err != nil {
		return err
	}

	d.logger.Info("running test group", "test_group", name)
	out, runErr := d.runner.Run(group, d.args...)
	if err := d.recorder.Record(out); err != nil {
		d.logger.Error("failed to save run history", "test_group", name, "error", err)
	}
	if d.metrics != nil {
		if out != nil {
			d.metrics.RecordRun(out.Group, out.Result, out.Err)
		} else {
			// Setup failed before discovery named the group.
			d.metrics.RecordRun(name, result.Failed(runErr.Error()), runErr)
		}
	}
	if runErr != nil {
		return fmt.Errorf("running test group %s: %w", name, runErr)
	}
	return nil
}
