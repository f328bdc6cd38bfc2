package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/callgrind-analysis/internal/analyzer"
	"github.com/callgrind-analysis/internal/exporter"
	"github.com/callgrind-analysis/internal/formatter"
	"github.com/callgrind-analysis/pkg/compression"
	"github.com/callgrind-analysis/pkg/config"
	"github.com/callgrind-analysis/pkg/model"
)

type analyzeOptions struct {
	input             string
	output            string
	format            string
	id                string
	event             string
	sortBy            string
	topN              int
	exports           []string
	attributes        map[string]string
	positions         []string
	strict            bool
	failOnDiagnostics bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Parse a callgrind dump and print a report",
		Long: `Parse a callgrind dump and report the hottest functions, the per-object
breakdown, the hot call path and any diagnostics found in the input.

The input may be plain, gzip or zstd compressed; the codec is detected from
the content. Use "-" to read from stdin.

Output formats:
  - text     : tables for people (default)
  - json     : the full report
  - callgraph: the call graph of the selected event as JSON
  - dot      : the call graph in Graphviz syntax

The command exits non-zero when the dump has fatal diagnostics, when an
exporter fails, or with --fail-on-diagnostics when any error was reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, a, opts)
		},
	}

	binName := BinName()
	analyzeCmd.Example = `  ` + binName + ` analyze -i callgrind.out.1234 -n 30 --event Dr
  ` + binName + ` analyze -i callgrind.out.1234.gz -f dot -o graph.dot
  ` + binName + ` analyze -i - --export metrics --attr build=1.4.2 < callgrind.out.1234`

	flags := analyzeCmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", `Input dump file, "-" for stdin (required)`)
	flags.StringVarP(&opts.output, "output", "o", "", "Write the report to a file instead of stdout")
	flags.StringVarP(&opts.format, "format", "f", "", "Output format: text, json, callgraph, dot")
	flags.StringVar(&opts.id, "id", "", "Analysis ID used by exporters (random UUID if empty)")
	flags.StringVar(&opts.event, "event", "", "Event to rank and graph (default: first event)")
	flags.StringVar(&opts.sortBy, "sort", "", "Rank functions by self or inclusive cost")
	flags.IntVarP(&opts.topN, "top", "n", 0, "Number of top functions to report")
	flags.StringSliceVar(&opts.exports, "export", nil, "Export targets: metrics, storage, database")
	flags.StringToStringVar(&opts.attributes, "attr", nil, "Attributes attached to exported records (key=value)")
	flags.StringSliceVar(&opts.positions, "positions", nil, "Position columns assumed without a positions: line (instr, line)")
	flags.BoolVar(&opts.strict, "strict", false, "Fail the parse on the first error diagnostic")
	flags.BoolVar(&opts.failOnDiagnostics, "fail-on-diagnostics", false, "Exit non-zero when any error diagnostic was reported")
	_ = analyzeCmd.MarkFlagRequired("input")

	return analyzeCmd
}

// apply copies the flags the user set over the loaded configuration.
func (o *analyzeOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("event") {
		cfg.Output.Event = o.event
	}
	if flags.Changed("sort") {
		cfg.Output.SortBy = o.sortBy
	}
	if flags.Changed("top") {
		cfg.Output.TopN = o.topN
	}
	if flags.Changed("export") {
		cfg.Export.Targets = o.exports
	}
	if flags.Changed("positions") {
		cfg.Parse.DefaultPositions = o.positions
	}
	if flags.Changed("strict") {
		cfg.Parse.StrictMode = o.strict
	}
	return cfg.Validate()
}

func runAnalyze(cmd *cobra.Command, a *app, opts *analyzeOptions) error {
	ctx := cmd.Context()
	cfg := *a.cfg
	if err := opts.apply(cmd, &cfg); err != nil {
		return err
	}
	log := a.logger

	fmtr, err := formatter.NewRegistry(formatter.Options{Pretty: cfg.Output.Pretty}).Get(cfg.Output.Format)
	if err != nil {
		return err
	}

	input, closeInput, err := openInput(opts.input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer closeInput()

	p, err := analyzer.NewParserRegistry(cfg.Parse, log).Lookup(analyzer.DefaultFormat)
	if err != nil {
		return err
	}

	exporters, err := exporter.FromConfig(ctx, &cfg, cfg.Export.Targets, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := exporters.Close(); err != nil {
			log.Warn("failed to close exporters: %v", err)
		}
	}()

	acfg, err := analyzer.ConfigFromApp(&cfg, log)
	if err != nil {
		return err
	}

	id := opts.id
	if id == "" {
		id = uuid.NewString()
	}
	log.Debug("analyzing %s as %s", displayInput(opts.input), id)

	report, analyzeErr := analyzer.New(p, exporters.Exporters, acfg).Analyze(ctx, &analyzer.Request{
		ID:         id,
		Source:     opts.input,
		Reader:     input,
		Attributes: opts.attributes,
	})

	// A failed parse still yields diagnostics worth printing, but only the
	// text and JSON reports can show them.
	if report != nil && (analyzeErr == nil || fmtr.Name() == "text" || fmtr.Name() == "json") {
		if err := writeReport(a, fmtr, report, opts.output, cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	if analyzeErr != nil {
		return analyzeErr
	}

	if opts.failOnDiagnostics && report.Diagnostics.HasErrors() {
		return fmt.Errorf("%d error diagnostics reported", report.Diagnostics.Count(model.SeverityError))
	}
	return nil
}

func writeReport(a *app, f formatter.ReportFormatter, report *analyzer.Report, path string, stdout io.Writer) error {
	if path == "" || path == "-" {
		return f.Format(report, stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := f.Format(report, file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		a.logger.Info("report written to %s (%s)", path, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

// openInput opens path, or stdin for "-", and detects its compression.
func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	raw := stdin
	closeRaw := func() {}
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		raw = file
		closeRaw = func() { _ = file.Close() }
	}

	r, err := compression.NewReader(raw)
	if err != nil {
		closeRaw()
		return nil, nil, fmt.Errorf("failed to read input: %w", err)
	}
	return r, func() {
		_ = r.Close()
		closeRaw()
	}, nil
}

func displayInput(path string) string {
	if strings.TrimSpace(path) == "-" {
		return "stdin"
	}
	return path
}
