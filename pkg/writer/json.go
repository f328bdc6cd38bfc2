// Package writer encodes reports as JSON, optionally compressed.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/callgrind-analysis/pkg/compression"
)

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string
}

// NewJSONWriter creates a new JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: ""}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write writes the data as JSON to the writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	return encoder.Encode(data)
}

// WriteToFile writes the data as JSON to a file.
func (w *JSONWriter[T]) WriteToFile(data T, path string) error {
	return writeFile(path, func(f io.Writer) error { return w.Write(data, f) })
}

// CompressedWriter writes data as compact JSON through a compression codec.
type CompressedWriter[T any] struct {
	Codec compression.Type
}

// NewCompressedWriter creates a writer for the given codec.
func NewCompressedWriter[T any](codec compression.Type) *CompressedWriter[T] {
	return &CompressedWriter[T]{Codec: codec}
}

// Write encodes data and flushes the codec. The writer is not closed.
func (w *CompressedWriter[T]) Write(data T, writer io.Writer) error {
	cw, err := compression.NewWriter(w.Codec, writer)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(cw).Encode(data); err != nil {
		cw.Close()
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return cw.Close()
}

// WriteToFile writes the compressed data to a file.
func (w *CompressedWriter[T]) WriteToFile(data T, path string) error {
	return writeFile(path, func(f io.Writer) error { return w.Write(data, f) })
}

// WriteResult contains statistics about an encoded document.
type WriteResult struct {
	JSONSize       int64
	CompressedSize int64
	CompressionPct float64
}

// WriteWithStats writes the compressed data and reports the sizes before
// and after compression.
func (w *CompressedWriter[T]) WriteWithStats(data T, writer io.Writer) (*WriteResult, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	compressed, err := compression.Compress(w.Codec, append(jsonData, '\n'))
	if err != nil {
		return nil, err
	}
	if _, err := writer.Write(compressed); err != nil {
		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	result := &WriteResult{
		JSONSize:       int64(len(jsonData) + 1),
		CompressedSize: int64(len(compressed)),
	}
	result.CompressionPct = float64(result.CompressedSize) / float64(result.JSONSize) * 100
	return result, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
