// Package analyzer runs the analysis pipeline for one profile dump: parse,
// statistics, call graph and export.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/callgrind-analysis/internal/callgraph"
	"github.com/callgrind-analysis/internal/exporter"
	"github.com/callgrind-analysis/internal/parser"
	"github.com/callgrind-analysis/internal/statistics"
	apperrors "github.com/callgrind-analysis/pkg/errors"
	"github.com/callgrind-analysis/pkg/model"
	"github.com/callgrind-analysis/pkg/telemetry"
	"github.com/callgrind-analysis/pkg/utils"
)

// Config holds configuration for the analyzer.
type Config struct {
	// TopN limits the top functions list.
	TopN int

	// Event selects the cost column for statistics and the call graph.
	// Empty means the first event of the dump.
	Event string

	// SortBy ranks top functions by self or inclusive cost.
	SortBy statistics.SortKey

	// MaxObjects limits the per-object breakdown. Zero keeps all objects.
	MaxObjects int

	// CallGraphOptions configures call graph generation. Its Event is
	// overridden by Event.
	CallGraphOptions *callgraph.GeneratorOptions

	// RequireRecords fails the analysis of a dump without cost records.
	RequireRecords bool

	// Logger is used for progress and diagnostics. If nil, logs are suppressed.
	Logger utils.Logger

	// Clock drives the phase timer. If nil, the real clock is used.
	Clock utils.Clock
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		TopN:             20,
		SortBy:           statistics.SortBySelf,
		CallGraphOptions: callgraph.DefaultGeneratorOptions(),
	}
}

// Request describes one dump to analyze.
type Request struct {
	// ID names the analysis in exports. Required when exporters are set.
	ID string
	// Source is the dump's path, "-" for stdin.
	Source string
	Reader io.Reader
	// Attributes are attached to exported records.
	Attributes map[string]string
}

// Report is the outcome of one analysis. Fields after Diagnostics are only
// set when parsing succeeded.
type Report struct {
	ID          string                        `json:"id"`
	Source      string                        `json:"source"`
	Timestamp   time.Time                     `json:"timestamp"`
	Lines       int                           `json:"lines"`
	Summary     *model.ProfileSummary         `json:"summary,omitempty"`
	Diagnostics model.Diagnostics             `json:"diagnostics,omitempty"`
	Suppressed  int                           `json:"suppressed_diagnostics,omitempty"`
	TopFuncs    *statistics.TopFuncsResult    `json:"top_funcs,omitempty"`
	Objects     *statistics.ObjectStatsResult `json:"objects,omitempty"`
	CallGraph   *callgraph.CallGraph          `json:"callgraph,omitempty"`
	HotPath     []*callgraph.Node             `json:"hot_path,omitempty"`
	Exports     []exporter.Status             `json:"exports,omitempty"`
	Phases      []utils.Phase                 `json:"phases,omitempty"`
}

// Analyzer parses dumps and derives reports from them.
type Analyzer struct {
	config    *Config
	parser    parser.Parser
	exporters []exporter.Exporter
	logger    utils.Logger
	clock     utils.Clock
}

// New creates an analyzer. Exporters run after every successful parse.
func New(p parser.Parser, exporters []exporter.Exporter, config *Config) *Analyzer {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	clock := config.Clock
	if clock == nil {
		clock = utils.NewRealClock()
	}
	return &Analyzer{
		config:    config,
		parser:    p,
		exporters: exporters,
		logger:    logger,
		clock:     clock,
	}
}

// Analyze runs the pipeline. On failure the report holds everything
// gathered up to the failing phase, including a partial summary and the
// diagnostics of a failed parse.
func (a *Analyzer) Analyze(ctx context.Context, req *Request) (report *Report, err error) {
	if req == nil || req.Reader == nil {
		return nil, ErrNilRequest
	}

	ctx, span := telemetry.StartSpan(ctx, "analyze",
		attribute.String("profile.id", req.ID),
		attribute.String("profile.source", req.Source),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	timer := utils.NewTimer("analyze", utils.WithLogger(a.logger), utils.WithClock(a.clock))
	report = &Report{ID: req.ID, Source: req.Source, Timestamp: a.clock.Now()}
	defer func() { report.Phases = timer.Phases() }()

	_, err = timer.TimeFuncWithError("parse", func() error {
		return a.parse(ctx, req, report)
	})
	if err != nil {
		return report, err
	}

	_, err = timer.TimeFuncWithError("statistics", func() error {
		return a.statistics(ctx, report)
	})
	if err != nil {
		return report, err
	}

	_, err = timer.TimeFuncWithError("callgraph", func() error {
		return a.callGraph(ctx, report)
	})
	if err != nil {
		return report, err
	}

	if len(a.exporters) > 0 {
		_, err = timer.TimeFuncWithError("export", func() error {
			return a.export(ctx, req, report)
		})
	}

	timer.PrintSummary()
	return report, err
}

func (a *Analyzer) parse(ctx context.Context, req *Request, report *Report) error {
	ctx, span := telemetry.StartSpan(ctx, "analyze.parse", attribute.String("parser", a.parser.Name()))
	result, err := a.parser.Parse(ctx, req.Reader)
	if result != nil {
		report.Summary = result.Summary
		report.Diagnostics = result.Diagnostics
		report.Suppressed = result.Suppressed
		report.Lines = result.Lines
		span.SetAttributes(
			attribute.Int("parse.lines", result.Lines),
			attribute.Int("parse.diagnostics", len(result.Diagnostics)),
		)
	}
	telemetry.EndSpan(span, err)

	a.logDiagnostics(report.Diagnostics)
	if report.Suppressed > 0 {
		a.logger.Warn("%d further diagnostics suppressed (max_diagnostics reached)", report.Suppressed)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeParseError, fmt.Sprintf("failed to parse %s", displaySource(req.Source)), err)
	}
	if report.Summary == nil {
		return apperrors.Wrap(apperrors.CodeParseError, "parser returned no summary", nil)
	}
	if a.config.RequireRecords && report.Summary.Len() == 0 {
		return apperrors.Wrap(apperrors.CodeEmptyFile, displaySource(req.Source), ErrEmptyData)
	}

	a.logger.Info("parsed %d lines: %d functions, %d events, %d diagnostics",
		report.Lines, report.Summary.Len(), len(report.Summary.Events()), len(report.Diagnostics))
	return nil
}

func (a *Analyzer) statistics(ctx context.Context, report *Report) error {
	_, span := telemetry.StartSpan(ctx, "analyze.statistics")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	topFuncs := statistics.NewTopFuncsCalculator(
		statistics.WithTopN(a.config.TopN),
		statistics.WithEvent(a.config.Event),
		statistics.WithSortBy(a.config.SortBy),
	)
	if report.TopFuncs, err = topFuncs.Calculate(report.Summary); err != nil {
		return fmt.Errorf("failed to rank functions: %w", err)
	}

	objects := statistics.NewObjectStatsCalculator(
		statistics.WithMaxObjects(a.config.MaxObjects),
		statistics.WithObjectEvent(a.config.Event),
	)
	if report.Objects, err = objects.Calculate(report.Summary); err != nil {
		return fmt.Errorf("failed to group objects: %w", err)
	}
	return nil
}

func (a *Analyzer) callGraph(ctx context.Context, report *Report) error {
	ctx, span := telemetry.StartSpan(ctx, "analyze.callgraph")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	opts := callgraph.DefaultGeneratorOptions()
	if a.config.CallGraphOptions != nil {
		copied := *a.config.CallGraphOptions
		opts = &copied
	}
	opts.Event = a.config.Event

	if report.CallGraph, err = callgraph.NewGenerator(opts).Generate(ctx, report.Summary); err != nil {
		return fmt.Errorf("failed to build call graph: %w", err)
	}
	report.HotPath = callgraph.HotPath(report.CallGraph)
	span.SetAttributes(attribute.Int("callgraph.nodes", len(report.CallGraph.Nodes)))
	return nil
}

func (a *Analyzer) export(ctx context.Context, req *Request, report *Report) error {
	if req.ID == "" {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "export requires an analysis ID", nil)
	}
	meta := exporter.ExportMeta{
		ID:          req.ID,
		Source:      req.Source,
		Timestamp:   report.Timestamp,
		Diagnostics: len(report.Diagnostics),
		Attributes:  req.Attributes,
	}
	report.Exports = exporter.RunAll(ctx, a.exporters, report.Summary, meta, a.logger)
	if err := exporter.FirstError(report.Exports); err != nil {
		return apperrors.Wrap(apperrors.CodeExportError, "export failed", err)
	}
	return nil
}

func (a *Analyzer) logDiagnostics(diags model.Diagnostics) {
	for _, d := range diags {
		switch d.Severity {
		case model.SeverityWarning:
			a.logger.Warn("line %d: %s: %s", d.Line, d.Kind, d.Message)
		default:
			a.logger.Error("line %d: %s: %s", d.Line, d.Kind, d.Message)
		}
	}
}

func displaySource(source string) string {
	if source == "" || source == "-" {
		return "stdin"
	}
	return source
}
