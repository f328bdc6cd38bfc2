package analyzer

import (
	"github.com/callgrind-analysis/internal/callgraph"
	"github.com/callgrind-analysis/internal/parser"
	"github.com/callgrind-analysis/internal/parser/callgrind"
	"github.com/callgrind-analysis/internal/statistics"
	"github.com/callgrind-analysis/pkg/config"
	"github.com/callgrind-analysis/pkg/model"
	"github.com/callgrind-analysis/pkg/utils"
)

// DefaultFormat is the input format analyzed when none is named.
const DefaultFormat = "callgrind"

// NewParserRegistry registers every supported input format, configured
// from the parse section.
func NewParserRegistry(cfg config.ParseConfig, logger utils.Logger) *parser.Registry {
	registry := parser.NewRegistry()

	opts := []parser.ParserOption{
		callgrind.WithDefaultPositionsOption(cfg.DefaultPositions),
		callgrind.WithStrictModeOption(cfg.StrictMode),
		callgrind.WithMaxDiagnosticsOption(cfg.MaxDiagnostics),
	}
	if cfg.ProgressInterval > 0 && logger != nil {
		opts = append(opts, callgrind.WithProgressOption(cfg.ProgressInterval, func(lines int, partial *model.ProfileSummary) {
			logger.Debug("parsed %d lines, %d functions so far", lines, partial.Len())
		}))
	}
	callgrind.RegisterWithRegistry(registry, opts...)
	return registry
}

// ConfigFromApp derives the analyzer configuration from the output section.
func ConfigFromApp(cfg *config.Config, logger utils.Logger) (*Config, error) {
	sortBy, err := statistics.ParseSortKey(cfg.Output.SortBy)
	if err != nil {
		return nil, err
	}
	return &Config{
		TopN:   cfg.Output.TopN,
		Event:  cfg.Output.Event,
		SortBy: sortBy,
		CallGraphOptions: &callgraph.GeneratorOptions{
			MinNodePct: cfg.Output.MinNodePct,
			MinEdgePct: cfg.Output.MinEdgePct,
		},
		Logger: logger,
	}, nil
}
