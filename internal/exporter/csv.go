package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/scscodes/flsd/internal/table"
)

// CSVWriter writes tables to CSV files
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CSVWriter{logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	// Exclusive fails with an fs.ErrExist error instead of replacing a file.
	// It applies to direct writes only.
	Exclusive bool
	// Atomic writes to a temporary file in the same directory and renames it
	// into place, so readers never observe a partial file. It always replaces.
	Atomic bool
}

// WriteTable writes t to filePath, creating the parent directory.
func (w *CSVWriter) WriteTable(filePath string, t *table.Table, options WriteOptions) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	w.logger.Debug("Writing CSV file",
		slog.String("path", filePath),
		slog.Int("record_count", t.Len()),
		slog.Bool("atomic", options.Atomic))

	if options.Atomic {
		return w.writeAtomic(filePath, t)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if options.Exclusive {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}

	file, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	if err := writeRecords(file, t); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (w *CSVWriter) writeAtomic(filePath string, t *table.Table) error {
	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := writeRecords(tmp, t); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}

func writeRecords(out io.Writer, t *table.Table) error {
	headers, records := t.Records()

	writer := csv.NewWriter(out)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
