// Package formatter renders analysis reports for people and tools.
package formatter

import (
	"fmt"
	"io"
	"sort"

	"github.com/callgrind-analysis/internal/analyzer"
)

// ReportFormatter is the interface for rendering an analysis report.
type ReportFormatter interface {
	// Format writes the report to w.
	Format(report *analyzer.Report, w io.Writer) error

	// Name returns the format name used on the command line.
	Name() string

	// Extension returns the file extension of the output, including the dot.
	Extension() string
}

// Options tunes the built-in formatters.
type Options struct {
	// Pretty indents JSON output.
	Pretty bool
	// MaxRows limits table rows in text output. Zero prints all rows.
	MaxRows int
}

// Registry manages formatter instances.
type Registry struct {
	formatters map[string]ReportFormatter
}

// NewRegistry creates a new formatter registry with the built-in formatters.
func NewRegistry(opts Options) *Registry {
	r := &Registry{formatters: make(map[string]ReportFormatter)}

	r.Register(&TextFormatter{MaxRows: opts.MaxRows})
	r.Register(&JSONFormatter{Pretty: opts.Pretty})
	r.Register(&CallGraphFormatter{Pretty: opts.Pretty})
	r.Register(&DOTFormatter{})

	return r
}

// Register registers a formatter under its name, replacing any previous one.
func (r *Registry) Register(f ReportFormatter) {
	r.formatters[f.Name()] = f
}

// Get returns the formatter for a format name.
func (r *Registry) Get(name string) (ReportFormatter, error) {
	if f, ok := r.formatters[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown output format %q (valid: %v)", name, r.Names())
}

// Names returns the registered format names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format renders report with the named formatter.
func (r *Registry) Format(name string, report *analyzer.Report, w io.Writer) error {
	f, err := r.Get(name)
	if err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("no report to format")
	}
	return f.Format(report, w)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
