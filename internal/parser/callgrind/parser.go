// Package callgrind parses call-graph profile dumps in the callgrind text
// format and aggregates them into a cost graph.
//
// The format is line oriented and context sensitive: keywords are only
// recognized at the start of a line, names are compressed with
// "(id) name" definitions that later lines reference as "(id)", and cost
// lines are interpreted against the event schema and position columns
// declared earlier. See Session for the record-by-record API.
package callgrind

import (
	"context"
	"fmt"
	"io"

	"github.com/callgrind-analysis/pkg/model"
)

// Position columns that a "positions:" line may declare.
const (
	PositionInstr = "instr"
	PositionLine  = "line"
)

// ParserOptions holds configuration options for the callgrind parser.
type ParserOptions struct {
	// DefaultPositions are the sub-position columns assumed when the dump
	// has no "positions:" line. Empty means cost lines carry costs only.
	DefaultPositions []string

	// MaxDiagnostics caps the number of collected diagnostics. Fatal
	// diagnostics are always kept. Zero means unlimited.
	MaxDiagnostics int

	// StrictMode fails the parse when any error diagnostic was reported.
	StrictMode bool

	// ProgressInterval calls OnProgress every N input lines. Zero disables.
	ProgressInterval int

	// OnProgress receives the line count and a partial summary.
	OnProgress func(lines int, partial *model.ProfileSummary)
}

// DefaultParserOptions returns default parser options.
func DefaultParserOptions() *ParserOptions {
	return &ParserOptions{
		DefaultPositions: nil,
		MaxDiagnostics:   0,
		StrictMode:       false,
	}
}

// Parser implements the callgrind format parser.
type Parser struct {
	opts *ParserOptions
}

// NewParser creates a new callgrind parser.
func NewParser(opts *ParserOptions) *Parser {
	if opts == nil {
		opts = DefaultParserOptions()
	}
	return &Parser{opts: opts}
}

// Parse reads a whole dump. The result is returned even when err is
// non-nil, holding the diagnostics and whatever was aggregated before
// parsing stopped.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) (*model.ParseResult, error) {
	session := NewSession(reader, p.opts)

	for session.Next() {
		select {
		case <-ctx.Done():
			result, _ := session.Finish()
			return result, fmt.Errorf("parse interrupted at line %d: %w", session.Lines(), ctx.Err())
		default:
		}

		if p.opts.ProgressInterval > 0 && p.opts.OnProgress != nil && session.Lines()%p.opts.ProgressInterval == 0 {
			p.opts.OnProgress(session.Lines(), session.Snapshot())
		}
	}

	return session.Finish()
}

// SupportedFormats returns the formats supported by this parser.
func (p *Parser) SupportedFormats() []string {
	return []string{"callgrind"}
}

// Name returns the name of this parser.
func (p *Parser) Name() string {
	return "callgrind"
}
