package demo

import (
	"errors"
	"os"
	"time"

	"github.com/nomis52/phasetest/processors"
)

const stepDelay = 2 * time.Second

// RemoteEnv names the environment variable enabling TestRemote.
const RemoteEnv = "PHASETEST_REMOTE"

// Steps simulates slow sequential work, for watching test case status
// change while a run is in progress.
type Steps struct {
	Delay time.Duration
	done  []string
}

func (s *Steps) SetUpGroup() error {
	s.done = nil
	return nil
}

func (s *Steps) TearDownGroup() error {
	if len(s.done) == 0 {
		return errors.New("no step completed")
	}
	return nil
}

func (s *Steps) step(name string) {
	time.Sleep(s.Delay)
	s.done = append(s.done, name)
}

func (s *Steps) TestStep1() { s.step("step1") }

func (s *Steps) TestStep2() { s.step("step2") }

func (s *Steps) TestStep3() error {
	s.step("step3")
	if len(s.done) != 3 {
		return errors.New("steps ran out of order")
	}
	return nil
}

func (s *Steps) TestRemote() {}

func (s *Steps) Annotations() map[string][]any {
	return map[string][]any{
		"TestRemote": {processors.Precondition{
			Reason: RemoteEnv + " is not set",
			Met:    func() bool { return os.Getenv(RemoteEnv) != "" },
		}},
	}
}
