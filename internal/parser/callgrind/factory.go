package callgrind

import (
	"github.com/callgrind-analysis/internal/parser"
	"github.com/callgrind-analysis/pkg/model"
)

// Factory creates new callgrind parsers.
type Factory struct{}

// NewFactory creates a new callgrind parser factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create creates a new callgrind parser with the given options.
func (f *Factory) Create(opts ...parser.ParserOption) (parser.Parser, error) {
	parserOpts := DefaultParserOptions()

	for _, opt := range opts {
		opt(parserOpts)
	}

	return NewParser(parserOpts), nil
}

// RegisterWithRegistry registers the callgrind parser with the given registry.
func RegisterWithRegistry(registry *parser.Registry, opts ...parser.ParserOption) {
	p, _ := NewFactory().Create(opts...)
	registry.Register("callgrind", p)
}

// WithDefaultPositionsOption sets the sub-position columns assumed when a
// dump has no "positions:" line.
func WithDefaultPositionsOption(positions []string) parser.ParserOption {
	return func(opts interface{}) {
		if o, ok := opts.(*ParserOptions); ok {
			o.DefaultPositions = append([]string(nil), positions...)
		}
	}
}

// WithStrictModeOption returns a parser option that enables strict mode.
func WithStrictModeOption(strict bool) parser.ParserOption {
	return func(opts interface{}) {
		if o, ok := opts.(*ParserOptions); ok {
			o.StrictMode = strict
		}
	}
}

// WithMaxDiagnosticsOption caps the number of collected diagnostics.
func WithMaxDiagnosticsOption(n int) parser.ParserOption {
	return func(opts interface{}) {
		if o, ok := opts.(*ParserOptions); ok {
			o.MaxDiagnostics = n
		}
	}
}

// WithProgressOption reports progress every interval lines.
func WithProgressOption(interval int, fn func(lines int, partial *model.ProfileSummary)) parser.ParserOption {
	return func(opts interface{}) {
		if o, ok := opts.(*ParserOptions); ok {
			o.ProgressInterval = interval
			o.OnProgress = fn
		}
	}
}
