// Package report renders the outcomes of test group runs as a table.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nomis52/phasetest/result"
	"github.com/nomis52/phasetest/runner"
)

const (
	statusError = "error"
	casePrefix  = "├── "
)

// Options tune the rendered report.
type Options struct {
	// Title is printed above the table.
	Title string
	// Color styles the table by the overall status, for terminals.
	Color bool
	// Messages adds the result message of every row.
	Messages bool
}

// stats counts the test case verdicts of one or more runs.
type stats struct {
	total, passed, failed, notApplicable int
	duration                             time.Duration
	aborted                              bool
}

func (s *stats) add(r result.TestResult) {
	s.total++
	switch {
	case r.IsInapplicable():
		s.notApplicable++
	case r.IsOK():
		s.passed++
	default:
		s.failed++
	}
}

func (s *stats) merge(o stats) {
	s.total += o.total
	s.passed += o.passed
	s.failed += o.failed
	s.notApplicable += o.notApplicable
	s.duration += o.duration
	s.aborted = s.aborted || o.aborted
}

func (s stats) status() string {
	switch {
	case s.aborted:
		return statusError
	case s.failed > 0:
		return "failed"
	case s.total > 0 && s.notApplicable == s.total:
		return "not_applicable"
	default:
		return "passed"
	}
}

// Write renders outcomes followed by the final verdict line of each run.
func Write(w io.Writer, outcomes ...*runner.Outcome) error {
	return WriteWith(w, Options{}, outcomes...)
}

// WriteWith renders outcomes with the given options.
func WriteWith(w io.Writer, opts Options, outcomes ...*runner.Outcome) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if opts.Title != "" {
		t.SetTitle(opts.Title)
	}

	headers := table.Row{"TYPE", "NAME", "DURATION", "CASES", "PASSED", "FAILED", "N/A", "STATUS"}
	if opts.Messages {
		headers = append(headers, "MESSAGE")
	}
	t.AppendHeader(headers)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "TYPE", AutoMerge: true},
		{Name: "NAME", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "DURATION", Align: text.AlignRight},
		{Name: "CASES", Align: text.AlignRight},
		{Name: "PASSED", Align: text.AlignRight},
		{Name: "FAILED", Align: text.AlignRight},
		{Name: "N/A", Align: text.AlignRight},
		{Name: "MESSAGE", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	var total stats
	for _, out := range outcomes {
		total.merge(addOutcome(t, out, opts))
	}

	if opts.Color {
		t.SetStyle(styleFor(total.status()))
	} else {
		t.SetStyle(table.StyleLight)
	}

	footer := table.Row{"TOTAL", "", formatDuration(total.duration), total.total, total.passed,
		total.failed, total.notApplicable, strings.ToUpper(total.status())}
	if opts.Messages {
		footer = append(footer, "")
	}
	t.AppendFooter(footer)
	t.Render()

	for _, out := range outcomes {
		if _, err := fmt.Fprintf(w, "%s: %s\n", out.Group, out.Result); err != nil {
			return err
		}
	}
	return nil
}

func addOutcome(t table.Writer, out *runner.Outcome, opts Options) stats {
	s := stats{duration: out.Duration, aborted: out.Err != nil}
	var rows []table.Row
	for _, c := range out.Cases {
		s.add(c.Result)
		row := table.Row{"case", casePrefix + c.Name, formatDuration(c.Duration), "", "", "", "", c.Result.Status()}
		if opts.Messages {
			row = append(row, c.Result.Message())
		}
		rows = append(rows, row)
	}

	group := table.Row{"group", out.Group, formatDuration(out.Duration), s.total, s.passed, s.failed, s.notApplicable, s.status()}
	if opts.Messages {
		group = append(group, out.Result.Message())
	}
	t.AppendRow(group)
	t.AppendRows(rows)
	return s
}

func styleFor(status string) table.Style {
	switch status {
	case "failed", statusError:
		return table.StyleColoredBlackOnRedWhite
	case "not_applicable":
		return table.StyleColoredBlackOnYellowWhite
	default:
		return table.StyleColoredBlackOnGreenWhite
	}
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}
