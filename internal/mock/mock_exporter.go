package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/callgrind-analysis/internal/exporter"
	"github.com/callgrind-analysis/pkg/model"
)

// MockExporter is a mock implementation of the Exporter interface.
type MockExporter struct {
	mock.Mock
	name string
}

// NewMockExporter creates a mock exporter reporting name.
func NewMockExporter(name string) *MockExporter {
	return &MockExporter{name: name}
}

// Name returns the configured name.
func (m *MockExporter) Name() string { return m.name }

// Export mocks the Export method.
func (m *MockExporter) Export(ctx context.Context, summary *model.ProfileSummary, meta exporter.ExportMeta) error {
	args := m.Called(ctx, summary, meta)
	return args.Error(0)
}

// ExpectExport sets up an expectation for any Export call.
func (m *MockExporter) ExpectExport(err error) *mock.Call {
	return m.On("Export", mock.Anything, mock.Anything, mock.Anything).Return(err)
}

var _ exporter.Exporter = (*MockExporter)(nil)
