package formatter

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/callgrind-analysis/internal/analyzer"
	"github.com/callgrind-analysis/pkg/model"
)

// TextFormatter renders a report as headed sections with tables.
type TextFormatter struct {
	MaxRows int
}

// Name returns "text".
func (f *TextFormatter) Name() string { return "text" }

// Extension returns ".txt".
func (f *TextFormatter) Extension() string { return ".txt" }

// Format writes the report sections. Sections whose data is missing from
// the report are skipped.
func (f *TextFormatter) Format(report *analyzer.Report, w io.Writer) error {
	tw := &textWriter{w: w}

	tw.line("=== Profile ===")
	tw.line("Source:       %s", sourceName(report.Source))
	if report.ID != "" {
		tw.line("ID:           %s", report.ID)
	}
	tw.line("Lines:        %s", humanize.Comma(int64(report.Lines)))
	if s := report.Summary; s != nil {
		if s.Command() != "" {
			tw.line("Command:      %s", s.Command())
		}
		if s.Creator() != "" {
			tw.line("Creator:      %s", s.Creator())
		}
		tw.line("Functions:    %d", s.Len())
		f.writeTotals(tw, s)
	}
	tw.line("")

	if report.TopFuncs != nil {
		tw.line("=== Top Functions (%s, by %s) ===", report.TopFuncs.Event, report.TopFuncs.SortBy)
		table := f.newTable(tw, "#", "Self", "Self%", "Inclusive", "Incl%", "Calls", "Function", "Object")
		for i, e := range limit(report.TopFuncs.TopFuncs, f.MaxRows) {
			table.Append([]string{
				fmt.Sprintf("%d", i+1),
				comma(e.Self),
				fmt.Sprintf("%.2f", e.SelfPercent),
				comma(e.Inclusive),
				fmt.Sprintf("%.2f", e.InclusivePercent),
				comma(e.CalledTimes),
				truncateString(e.ID.Name, 60),
				truncateString(e.ID.Object, 40),
			})
		}
		table.Render()
		tw.line("")
	}

	if report.Objects != nil && len(report.Objects.Objects) > 0 {
		tw.line("=== Objects (%s) ===", report.Objects.Event)
		table := f.newTable(tw, "Object", "Functions", "Self", "Self%")
		column := eventColumn(report.Summary, report.Objects.Event)
		for _, o := range limit(report.Objects.Objects, f.MaxRows) {
			name := o.Object
			if name == "" {
				name = "(unknown)"
			}
			var self uint64
			if column >= 0 && column < len(o.Self) {
				self = o.Self[column]
			}
			table.Append([]string{name, fmt.Sprintf("%d", o.Functions), comma(self), fmt.Sprintf("%.2f", o.Percentage)})
		}
		table.Render()
		tw.line("")
	}

	if len(report.HotPath) > 0 {
		tw.line("=== Hot Path ===")
		for i, node := range report.HotPath {
			tw.line("%s%s  %.2f%% (%.2f%% self)", strings.Repeat("  ", i), node.Name, node.TotalPct, node.SelfPct)
		}
		tw.line("")
	}

	if len(report.Diagnostics) > 0 {
		tw.line("=== Diagnostics ===")
		tw.line("%d warnings, %d errors, %d fatal",
			report.Diagnostics.Count(model.SeverityWarning),
			report.Diagnostics.Count(model.SeverityError),
			report.Diagnostics.Count(model.SeverityFatal))
		for _, d := range limit(report.Diagnostics, f.MaxRows) {
			tw.line("  %s", d)
		}
		if f.MaxRows > 0 && len(report.Diagnostics) > f.MaxRows {
			tw.line("  ... and %d more", len(report.Diagnostics)-f.MaxRows)
		}
		if report.Suppressed > 0 {
			tw.line("  %d suppressed after the diagnostics limit", report.Suppressed)
		}
		tw.line("")
	}

	if len(report.Exports) > 0 {
		tw.line("=== Exports ===")
		for _, s := range report.Exports {
			status := "ok"
			if s.Error != "" {
				status = "failed: " + s.Error
			}
			tw.line("  %-10s %-10v %s", s.Exporter, s.Duration, status)
		}
		tw.line("")
	}

	return tw.err
}

func (f *TextFormatter) writeTotals(tw *textWriter, s *model.ProfileSummary) {
	totals := s.Totals()
	declared := s.DeclaredTotals()
	for i, event := range s.Events() {
		value := uint64(0)
		if i < len(totals) {
			value = totals[i]
		}
		line := fmt.Sprintf("Total %-7s %s", event+":", comma(value))
		if i < len(declared) && declared[i] != value {
			line += fmt.Sprintf(" (declared %s)", comma(declared[i]))
		}
		tw.line("%s", line)
	}
}

func (f *TextFormatter) newTable(tw *textWriter, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(tw)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// textWriter remembers the first write error so sections can be written
// without checking each line.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) Write(p []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

func (t *textWriter) line(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(t, format+"\n", args...)
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func comma(v uint64) string {
	if v > math.MaxInt64 {
		return humanize.Comma(math.MaxInt64) + "+"
	}
	return humanize.Comma(int64(v))
}

func eventColumn(s *model.ProfileSummary, event string) int {
	if s == nil {
		return -1
	}
	return s.EventIndex(event)
}

func sourceName(source string) string {
	if source == "" || source == "-" {
		return "stdin"
	}
	return source
}
