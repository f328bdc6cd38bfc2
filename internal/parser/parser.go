// Package parser defines the interfaces for parsing profile dumps.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/callgrind-analysis/pkg/model"
)

// ErrUnsupportedFormat is returned by Lookup for unregistered formats.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Parser is the interface for parsing profile dumps.
type Parser interface {
	// Parse parses a profile from the reader. A partial result is returned
	// together with the error when parsing stops early.
	Parse(ctx context.Context, reader io.Reader) (*model.ParseResult, error)

	// SupportedFormats returns the formats supported by this parser.
	SupportedFormats() []string

	// Name returns the name of this parser.
	Name() string
}

// ParserFactory is a function that creates a new Parser instance.
type ParserFactory func(opts ...ParserOption) (Parser, error)

// ParserOption is a function that configures a Parser.
type ParserOption func(interface{})

// Registry holds registered parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a new parser Registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]Parser),
	}
}

// Register registers a parser with the given format name.
func (r *Registry) Register(format string, parser Parser) {
	r.parsers[format] = parser
}

// Get returns a parser for the given format.
func (r *Registry) Get(format string) (Parser, bool) {
	parser, ok := r.parsers[format]
	return parser, ok
}

// Lookup returns the parser for format or ErrUnsupportedFormat.
func (r *Registry) Lookup(format string) (Parser, error) {
	p, ok := r.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnsupportedFormat, format, strings.Join(r.Formats(), ", "))
	}
	return p, nil
}

// Formats returns the registered format names in sorted order.
func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}
