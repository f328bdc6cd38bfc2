package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/callgrind-analysis/internal/analyzer"
	"github.com/callgrind-analysis/internal/exporter"
	"github.com/callgrind-analysis/pkg/config"
)

type exportOptions struct {
	input      string
	fromDB     string
	id         string
	targets    []string
	attributes map[string]string
}

func newExportCmd(a *app) *cobra.Command {
	opts := &exportOptions{}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Send a profile to the configured export targets",
		Long: `Export a profile without printing a report.

The profile is either parsed from --input or loaded from the database with
--from-db. Every target runs even if another fails; the command exits
non-zero if any target failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, opts)
		},
	}

	binName := BinName()
	exportCmd.Example = `  ` + binName + ` export -i callgrind.out.1234 --to metrics,storage -c config.yaml
  ` + binName + ` export --from-db 7d1c0b7e-8a7e-4a53-9d51-0c3f4f1d2c11 --to metrics`

	flags := exportCmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", `Input dump file, "-" for stdin`)
	flags.StringVar(&opts.fromDB, "from-db", "", "Export the stored profile with this ID")
	flags.StringVar(&opts.id, "id", "", "Export ID (random UUID if empty; the stored ID with --from-db)")
	flags.StringSliceVar(&opts.targets, "to", nil, "Export targets: metrics, storage, database (default: export.targets)")
	flags.StringToStringVar(&opts.attributes, "attr", nil, "Attributes attached to exported records (key=value)")
	exportCmd.MarkFlagsMutuallyExclusive("input", "from-db")
	exportCmd.MarkFlagsOneRequired("input", "from-db")

	return exportCmd
}

func runExport(cmd *cobra.Command, a *app, opts *exportOptions) error {
	ctx := cmd.Context()
	cfg := *a.cfg
	if cmd.Flags().Changed("to") {
		cfg.Export.Targets = opts.targets
	}
	if len(cfg.Export.Targets) == 0 {
		return fmt.Errorf("no export targets: set --to or export.targets")
	}
	if err := cfg.Validate(); err != nil {
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

	if opts.input != "" {
		id := opts.id
		if id == "" {
			id = uuid.NewString()
		}
		return exportDump(cmd, a, &cfg, exporters, id, opts)
	}

	id := opts.id
	if id == "" {
		id = opts.fromDB
	}
	summary, err := loadStoredSummary(ctx, &cfg, opts.fromDB)
	if err != nil {
		return err
	}
	meta := exporter.ExportMeta{
		ID:         id,
		Source:     "db:" + opts.fromDB,
		Timestamp:  time.Now(),
		Attributes: opts.attributes,
	}
	statuses := exporter.RunAll(ctx, exporters.Exporters, summary, meta, a.logger)
	printStatuses(cmd.OutOrStdout(), statuses)
	return exporter.FirstError(statuses)
}

func exportDump(cmd *cobra.Command, a *app, cfg *config.Config, exporters *exporter.Set, id string, opts *exportOptions) error {
	input, closeInput, err := openInput(opts.input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer closeInput()

	p, err := analyzer.NewParserRegistry(cfg.Parse, a.logger).Lookup(analyzer.DefaultFormat)
	if err != nil {
		return err
	}
	acfg, err := analyzer.ConfigFromApp(cfg, a.logger)
	if err != nil {
		return err
	}

	report, err := analyzer.New(p, exporters.Exporters, acfg).Analyze(cmd.Context(), &analyzer.Request{
		ID:         id,
		Source:     opts.input,
		Reader:     input,
		Attributes: opts.attributes,
	})
	if report != nil && len(report.Exports) > 0 {
		printStatuses(cmd.OutOrStdout(), report.Exports)
	}
	return err
}

func printStatuses(w io.Writer, statuses []exporter.Status) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Target", "Duration", "Result"})
	table.SetAutoFormatHeaders(false)
	for _, s := range statuses {
		result := "ok"
		if s.Error != "" {
			result = s.Error
		}
		table.Append([]string{s.Exporter, s.Duration.Round(time.Millisecond).String(), result})
	}
	table.Render()
}
