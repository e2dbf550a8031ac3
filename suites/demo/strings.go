package demo

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nomis52/phasetest/processors"
)

// Reverse returns s with its runes in reverse order.
func Reverse(s string) string {
	r := []rune(s)
	slices.Reverse(r)
	return string(r)
}

// Strings checks string helpers. Every test case starts from a fresh input.
type Strings struct {
	input string
}

func (s *Strings) SetUpCase(string) error {
	s.input = "phasetest"
	return nil
}

func (s *Strings) TearDownCase(string) error {
	s.input = ""
	return nil
}

func (s *Strings) TestUpper() error {
	if got := strings.ToUpper(s.input); got != "PHASETEST" {
		return fmt.Errorf("expected PHASETEST, got %q", got)
	}
	return nil
}

func (s *Strings) TestReverse(in, want string) bool { return Reverse(in) == want }

func (s *Strings) TestContains() bool { return strings.Contains(s.input, "test") }

func (s *Strings) TestTitle() error {
	return fmt.Errorf("title casing %q is not implemented", s.input)
}

func (s *Strings) Annotations() map[string][]any {
	return map[string][]any{
		"TestReverse": {processors.Rows{Args: [][]any{{"abc", "cba"}, {"", ""}, {"héllo", "olléh"}}}},
		"TestTitle":   {processors.Exclude{Reason: "title casing is not implemented"}},
	}
}
