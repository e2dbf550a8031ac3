package schedule

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nomis52/phasetest/config"
)

const (
	specSeparator      = ";"
	groupsSeparator    = ":"
	groupListSeparator = ","
)

// Spec is a set of test groups to run on one cron schedule.
type Spec struct {
	Groups   []string
	CronSpec string
}

// ParseSpecs parses a multi-schedule specification string.
// The format is: group1,group2:cron_expression;group3:cron_expression2
//
// Example:
//
//	"arithmetic,strings:0 2 * * *;smoke:*/5 * * * *"
//
// Returns an error if:
//   - Any schedule is missing groups or cron expression
//   - Any group name is not in available
//   - Any cron expression is invalid
//   - Any schedule names a group twice
func ParseSpecs(spec string, available map[string]bool) ([]Spec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("schedule spec cannot be empty")
	}

	var specs []Spec
	for _, s := range strings.Split(spec, specSeparator) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		groupsStr, cronSpec, ok := strings.Cut(s, groupsSeparator)
		if !ok {
			return nil, fmt.Errorf("invalid schedule spec: expected format 'groups:cron', got '%s'", s)
		}
		parsed, err := newSpec(strings.Split(groupsStr, groupListSeparator), cronSpec, available)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule spec '%s': %w", s, err)
		}
		specs = append(specs, parsed)
	}

	if len(specs) == 0 {
		return nil, errors.New("no valid schedules found in spec")
	}
	return specs, nil
}

// FromConfig validates the schedules of a configuration file.
func FromConfig(schedules []config.Schedule, available map[string]bool) ([]Spec, error) {
	specs := make([]Spec, 0, len(schedules))
	for i, s := range schedules {
		parsed, err := newSpec(s.Groups, s.Schedule, available)
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i, err)
		}
		specs = append(specs, parsed)
	}
	return specs, nil
}

func newSpec(groupNames []string, cronSpec string, available map[string]bool) (Spec, error) {
	cronSpec = strings.TrimSpace(cronSpec)
	if cronSpec == "" {
		return Spec{}, errors.New("missing cron schedule")
	}

	groups := make([]string, 0, len(groupNames))
	seen := make(map[string]bool, len(groupNames))
	for _, g := range groupNames {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if seen[g] {
			return Spec{}, fmt.Errorf("duplicate test group '%s'", g)
		}
		seen[g] = true

		if !available[g] {
			return Spec{}, fmt.Errorf("unknown test group '%s' (available: %s)", g, formatAvailable(available))
		}
		groups = append(groups, g)
	}
	if len(groups) == 0 {
		return Spec{}, errors.New("missing test groups")
	}

	if _, err := parser.Parse(cronSpec); err != nil {
		return Spec{}, fmt.Errorf("invalid cron expression '%s': %w", cronSpec, err)
	}
	return Spec{Groups: groups, CronSpec: cronSpec}, nil
}

func formatAvailable(available map[string]bool) string {
	return strings.Join(slices.Sorted(maps.Keys(available)), ", ")
}
