package demo

import (
	"errors"
	"fmt"

	"github.com/nomis52/phasetest/processors"
)

// ErrDivisionByZero is returned when dividing by zero.
var ErrDivisionByZero = errors.New("division by zero")

// Divide returns a / b.
func Divide(a, b int) (int, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a / b, nil
}

// Arithmetic checks integer arithmetic. TestAdd runs once per argument row.
type Arithmetic struct{}

func (Arithmetic) TestAdd(a, b, want int) bool { return a+b == want }

func (Arithmetic) TestDivide() error {
	got, err := Divide(7, 2)
	if err != nil {
		return err
	}
	if got != 3 {
		return fmt.Errorf("7 / 2: expected 3, got %d", got)
	}
	return nil
}

func (Arithmetic) TestDivideByZero() error {
	_, err := Divide(1, 0)
	return err
}

func (Arithmetic) Annotations() map[string][]any {
	return map[string][]any{
		"TestAdd": {processors.Rows{
			Args:  [][]any{{1, 2, 3}, {-1, 1, 0}, {0, 0, 0}},
			Names: []string{"positive", "negative", "zero"},
		}},
		"TestDivideByZero": {processors.ExpectError{Is: ErrDivisionByZero}},
	}
}
