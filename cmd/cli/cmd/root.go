// Package cmd implements the callgrind-analysis command line.
package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/callgrind-analysis/pkg/config"
	"github.com/callgrind-analysis/pkg/telemetry"
	"github.com/callgrind-analysis/pkg/utils"
)

// app holds the state shared by all subcommands of one invocation.
type app struct {
	configPath string
	verbose    bool
	logLevel   string

	cfg      *config.Config
	logger   utils.Logger
	closeLog io.Closer
	shutdown telemetry.ShutdownFunc
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   BinName(),
		Short: "Analyze callgrind profile dumps",
		Long: `Parse callgrind profile dumps into an aggregated cost graph, report the
hottest functions and call paths, and export the result to a metric
endpoint, object storage or a SQL database.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	binName := BinName()
	rootCmd.Example = `  # Print a text report
  ` + binName + ` analyze -i callgrind.out.1234

  # Read from stdin and write JSON
  cat callgrind.out.1234 | ` + binName + ` analyze -i - -f json -o report.json

  # Analyze and export to object storage and the database
  ` + binName + ` analyze -i callgrind.out.1234 --export storage,database -c config.yaml`

	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	rootCmd.AddCommand(newBatchCmd(a))
	rootCmd.AddCommand(newProfilesCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx := context.Background()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := utils.ParseLogLevel(cfg.Log.Level)
	if a.logLevel != "" {
		level = utils.ParseLogLevel(a.logLevel)
	}
	if a.verbose {
		level = utils.LevelDebug
	}

	if cfg.Log.OutputPath != "" {
		fileLogger, err := utils.NewFileLogger(level, cfg.Log.OutputPath)
		if err != nil {
			return err
		}
		a.logger = fileLogger
		a.closeLog = fileLogger
	} else {
		a.logger = utils.NewDefaultLogger(level, cmd.ErrOrStderr())
	}
	utils.SetGlobalLogger(a.logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		a.logger.Warn("telemetry disabled: %v", err)
		shutdown = nil
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("failed to flush traces: %v", err)
		}
	}
	if a.closeLog != nil {
		return a.closeLog.Close()
	}
	return nil
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
