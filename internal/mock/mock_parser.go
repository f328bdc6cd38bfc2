// Package mock provides testify mocks for the parser, exporter, storage
// and repository interfaces.
package mock

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/callgrind-analysis/pkg/model"
)

// MockParser is a mock implementation of the Parser interface. Parse
// drains the reader and records its content as the second argument, so
// expectations can match on the dump text.
type MockParser struct {
	mock.Mock
}

// NewMockParser returns a parser mock answering Name and SupportedFormats
// with name.
func NewMockParser(name string) *MockParser {
	m := &MockParser{}
	m.On("Name").Return(name).Maybe()
	m.On("SupportedFormats").Return([]string{name}).Maybe()
	return m
}

// Parse mocks the Parse method.
func (m *MockParser) Parse(ctx context.Context, reader io.Reader) (*model.ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	args := m.Called(ctx, string(data))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ParseResult), args.Error(1)
}

// SupportedFormats mocks the SupportedFormats method.
func (m *MockParser) SupportedFormats() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// Name mocks the Name method.
func (m *MockParser) Name() string {
	args := m.Called()
	return args.String(0)
}

// ExpectParse answers any Parse call with result and err.
func (m *MockParser) ExpectParse(result *model.ParseResult, err error) *mock.Call {
	return m.On("Parse", mock.Anything, mock.Anything).Return(result, err)
}

// ExpectParseOf answers Parse calls whose input equals dump.
func (m *MockParser) ExpectParseOf(dump string, result *model.ParseResult, err error) *mock.Call {
	return m.On("Parse", mock.Anything, dump).Return(result, err)
}
