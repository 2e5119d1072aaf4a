package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"salesforecast/internal/frame"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	opts WriteOptions
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(opts WriteOptions) *CSVWriter {
	return &CSVWriter{opts: opts}
}

// Write streams result to out
func (w *CSVWriter) Write(out io.Writer, result *frame.Frame) error {
	t, err := tableOf(result)
	if err != nil {
		return err
	}

	stream, err := NewStreamWriter(out, Headers, w.opts.BOMPrefix)
	if err != nil {
		return err
	}
	record := make([]string, len(Headers))
	for i := 0; i < t.len(); i++ {
		record[0] = formatDate(t.dates[i])
		record[1] = t.skus[i]
		record[2] = t.stores[i]
		record[3] = formatInt(t.preds[i])
		if err := stream.WriteRecord(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return stream.Close()
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	writer *csv.Writer
}

// NewStreamWriter writes the optional BOM and the header row to out
func NewStreamWriter(out io.Writer, headers []string, bom bool) (*StreamWriter, error) {
	if bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes the stream
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	return s.writer.Error()
}

// Export writes result to out in the given format
func Export(out io.Writer, format Format, result *frame.Frame) error {
	switch format {
	case FormatCSV:
		return NewCSVWriter(WriteOptions{BOMPrefix: true}).Write(out, result)
	case FormatXLSX:
		return NewXLSXWriter().Write(out, result)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile exports result to path, creating parent directories
func WriteFile(path string, format Format, result *frame.Frame) error {
	slog.Info("Writing forecast export",
		slog.String("file_path", path),
		slog.String("format", string(format)),
		slog.Int("record_count", result.Len()))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Export(file, format, result); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
