package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/callgrind-analysis/internal/analyzer"
	"github.com/callgrind-analysis/internal/exporter"
	"github.com/callgrind-analysis/pkg/parallel"
	"github.com/callgrind-analysis/pkg/writer"
)

type batchOptions struct {
	workers    int
	format     string
	exports    []string
	attributes map[string]string
	timeout    time.Duration
}

// batchEntry is the JSON form of one analyzed dump.
type batchEntry struct {
	Input  string           `json:"input"`
	Error  string           `json:"error,omitempty"`
	Report *analyzer.Report `json:"report,omitempty"`
}

func newBatchCmd(a *app) *cobra.Command {
	opts := &batchOptions{}

	batchCmd := &cobra.Command{
		Use:   "batch <dump>...",
		Short: "Analyze several dumps concurrently",
		Long: `Analyze several dumps concurrently and print one summary row per dump.

Callgrind writes one dump per thread with --separate-threads=yes and one per
part with --dump-every-bb or callgrind_control -d; batch analyzes all of them
in one run. Arguments may be glob patterns. Each dump gets its own export ID.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, a, opts, args)
		},
	}

	binName := BinName()
	batchCmd.Example = `  ` + binName + ` batch 'callgrind.out.4242-*'
  ` + binName + ` batch -w 4 --export storage -c config.yaml callgrind.out.*`

	flags := batchCmd.Flags()
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Concurrent dumps (default: number of CPUs, at most 8)")
	flags.StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	flags.StringSliceVar(&opts.exports, "export", nil, "Export targets: metrics, storage, database")
	flags.StringToStringVar(&opts.attributes, "attr", nil, "Attributes attached to exported records (key=value)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Abort dumps still running after this long")

	return batchCmd
}

func runBatch(cmd *cobra.Command, a *app, opts *batchOptions, args []string) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported batch format: %s", opts.format)
	}
	inputs, err := expandInputs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cfg := *a.cfg
	if cmd.Flags().Changed("export") {
		cfg.Export.Targets = opts.exports
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	p, err := analyzer.NewParserRegistry(cfg.Parse, a.logger).Lookup(analyzer.DefaultFormat)
	if err != nil {
		return err
	}
	exporters, err := exporter.FromConfig(ctx, &cfg, cfg.Export.Targets, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := exporters.Close(); err != nil {
			a.logger.Warn("failed to close exporters: %v", err)
		}
	}()
	acfg, err := analyzer.ConfigFromApp(&cfg, a.logger)
	if err != nil {
		return err
	}
	an := analyzer.New(p, exporters.Exporters, acfg)

	poolCfg := parallel.DefaultPoolConfig().WithTimeout(opts.timeout)
	if opts.workers > 0 {
		poolCfg = poolCfg.WithWorkers(opts.workers)
	}
	pool := parallel.NewWorkerPool[string, *analyzer.Report](poolCfg)
	results := pool.Run(ctx, inputs, func(ctx context.Context, input string) (*analyzer.Report, error) {
		return analyzeFile(ctx, an, input, opts.attributes)
	})

	stats := pool.Stats()
	a.logger.Info("analyzed %d dumps in %v (%d failed, slowest %v)",
		stats.Jobs, stats.Wall.Round(time.Millisecond), stats.Failed, stats.Slowest.Round(time.Millisecond))

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		entries := make([]batchEntry, len(results))
		for i, r := range results {
			entries[i] = batchEntry{Input: r.Input, Report: r.Value}
			if r.Err != nil {
				entries[i].Error = r.Err.Error()
			}
		}
		if err := writer.NewPrettyJSONWriter[[]batchEntry]().Write(entries, out); err != nil {
			return err
		}
	} else {
		printBatch(out, results)
	}

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d dumps failed: %w", stats.Failed, stats.Jobs, parallel.FirstError(results))
	}
	return nil
}

func analyzeFile(ctx context.Context, an *analyzer.Analyzer, path string, attrs map[string]string) (*analyzer.Report, error) {
	input, closeInput, err := openInput(path, nil)
	if err != nil {
		return nil, err
	}
	defer closeInput()

	return an.Analyze(ctx, &analyzer.Request{
		ID:         uuid.NewString(),
		Source:     path,
		Reader:     input,
		Attributes: attrs,
	})
}

// expandInputs resolves glob patterns. A pattern without matches is kept
// as a literal path so that opening it reports the error.
func expandInputs(args []string) ([]string, error) {
	var inputs []string
	seen := make(map[string]bool)
	for _, arg := range args {
		if arg == "-" {
			return nil, fmt.Errorf("batch does not read stdin")
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				inputs = append(inputs, m)
			}
		}
	}
	return inputs, nil
}

func printBatch(w io.Writer, results []parallel.Result[string, *analyzer.Report]) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Dump", "Lines", "Functions", "Total", "Diagnostics", "Time", "Result"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, r := range results {
		row := []string{filepath.Base(r.Input), "-", "-", "-", "-", r.Duration.Round(time.Millisecond).String(), "ok"}
		if rep := r.Value; rep != nil {
			row[1] = strconv.Itoa(rep.Lines)
			row[4] = strconv.Itoa(len(rep.Diagnostics))
			if s := rep.Summary; s != nil {
				row[2] = strconv.Itoa(s.Len())
				if events, totals := s.Events(), s.Totals(); len(events) > 0 && len(totals) > 0 {
					row[3] = events[0] + " " + humanize.Comma(clampComma(totals[0]))
				}
			}
		}
		if r.Err != nil {
			row[6] = truncate(r.Err.Error(), 60)
		}
		table.Append(row)
	}
	table.Render()
}

func clampComma(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}
