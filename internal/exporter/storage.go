package exporter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/callgrind-analysis/internal/storage"
	"github.com/callgrind-analysis/pkg/compression"
	"github.com/callgrind-analysis/pkg/model"
	"github.com/callgrind-analysis/pkg/writer"
)

// StoredReport is the document written by StorageExporter.
type StoredReport struct {
	ID          string                `json:"id"`
	Source      string                `json:"source"`
	Timestamp   time.Time             `json:"timestamp"`
	Diagnostics int                   `json:"diagnostics"`
	Attributes  map[string]string     `json:"attributes,omitempty"`
	Summary     *model.ProfileSummary `json:"summary"`
}

// StorageExporter uploads the summary as compressed JSON.
type StorageExporter struct {
	store     storage.Storage
	codec     compression.Type
	keyPrefix string
}

// NewStorageExporter creates a storage exporter.
func NewStorageExporter(store storage.Storage, codec compression.Type, keyPrefix string) *StorageExporter {
	return &StorageExporter{store: store, codec: codec, keyPrefix: keyPrefix}
}

// Name returns "storage".
func (e *StorageExporter) Name() string { return "storage" }

// Key returns the object key used for meta.
func (e *StorageExporter) Key(meta ExportMeta) string {
	return ObjectKey(e.keyPrefix, meta, ".json"+e.codec.Extension())
}

// Export encodes and uploads the report.
func (e *StorageExporter) Export(ctx context.Context, summary *model.ProfileSummary, meta ExportMeta) error {
	report := StoredReport{
		ID:          meta.ID,
		Source:      meta.Source,
		Timestamp:   meta.Timestamp.UTC(),
		Diagnostics: meta.Diagnostics,
		Attributes:  meta.Attributes,
		Summary:     summary,
	}

	var buf bytes.Buffer
	if err := writer.NewCompressedWriter[StoredReport](e.codec).Write(report, &buf); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	objectMeta := &storage.ObjectMeta{
		ContentType:     "application/json",
		ContentEncoding: e.codec.ContentEncoding(),
		Metadata: map[string]string{
			"profile-id": meta.ID,
			"creator":    summary.Creator(),
			"events":     strings.Join(summary.Events(), ","),
		},
	}
	if err := e.store.Upload(ctx, e.Key(meta), &buf, objectMeta); err != nil {
		return err
	}
	return nil
}
