package exporter

import (
	"context"

	"github.com/callgrind-analysis/internal/repository"
	"github.com/callgrind-analysis/pkg/model"
)

// DatabaseExporter persists the summary through a profile repository.
type DatabaseExporter struct {
	repo repository.ProfileRepository
}

// NewDatabaseExporter creates a database exporter.
func NewDatabaseExporter(repo repository.ProfileRepository) *DatabaseExporter {
	return &DatabaseExporter{repo: repo}
}

// Name returns "database".
func (e *DatabaseExporter) Name() string { return "database" }

// Export saves the profile under meta.ID.
func (e *DatabaseExporter) Export(ctx context.Context, summary *model.ProfileSummary, meta ExportMeta) error {
	_, err := e.repo.SaveProfile(ctx, repository.ProfileMeta{
		UUID:        meta.ID,
		Source:      meta.Source,
		Diagnostics: meta.Diagnostics,
	}, summary)
	return err
}
