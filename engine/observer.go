package engine

import (
	"time"

	"github.com/nomis52/phasetest/phase"
	"github.com/nomis52/phasetest/processor"
	"github.com/nomis52/phasetest/result"
)

// Execution describes one processor call made by the engine.
type Execution struct {
	Group     string
	Case      string // empty for test group processors
	Processor processor.ID
	Phase     phase.Phase
	Duration  time.Duration
	Err       error
}

// Observer receives engine events. Implementations are called synchronously
// from the goroutine driving the run and must not block.
type Observer interface {
	ProcessorExecuted(e Execution)
	CaseStarted(group, name string)
	CaseFinished(group, name string, r result.TestResult, d time.Duration)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ProcessorExecuted(Execution) {}
func (NopObserver) CaseStarted(string, string) {}
func (NopObserver) CaseFinished(string, string, result.TestResult, time.Duration) {}

// Observers fans every event out to each observer in order.
type Observers []Observer

func (o Observers) ProcessorExecuted(e Execution) {
	for _, obs := range o {
		obs.ProcessorExecuted(e)
	}
}

func (o Observers) CaseStarted(group, name string) {
	for _, obs := range o {
		obs.CaseStarted(group, name)
	}
}

func (o Observers) CaseFinished(group, name string, r result.TestResult, d time.Duration) {
	for _, obs := range o {
		obs.CaseFinished(group, name, r, d)
	}
}
