// Package history keeps a ledger of ingestions in SQLite.
package history

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/scscodes/flsd/internal/pipeline"
)

//go:embed schema.sql
var schemaSQL string

// Limits for Recent.
const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Entry is one row of the ledger.
type Entry struct {
	ID                int64     `db:"id" json:"-"`
	IngestionID       string    `db:"ingestion_id" json:"id"`
	IngestedAt        time.Time `db:"ingested_at" json:"ingested_at"`
	Trigger           string    `db:"trigger_name" json:"trigger"`
	DataType          string    `db:"data_type" json:"data_type"`
	Label             string    `db:"label" json:"type"`
	RawFile           string    `db:"raw_file" json:"raw_file"`
	ProcessedFile     string    `db:"processed_file" json:"processed_file,omitempty"`
	RowsIn            int       `db:"rows_in" json:"rows_in"`
	RowsOut           int       `db:"rows_out" json:"rows_out"`
	DuplicatesRemoved int       `db:"duplicates_removed" json:"duplicates_removed"`
	NullsFilled       int       `db:"nulls_filled" json:"nulls_filled"`
	FutureRows        int       `db:"future_rows" json:"future_rows,omitempty"`
	Degraded          bool      `db:"degraded" json:"degraded"`
	Warnings          string    `db:"warnings" json:"warnings,omitempty"`
	Outcome           string    `db:"outcome" json:"outcome"`
	Error             string    `db:"error" json:"error,omitempty"`
	DurationMS        int64     `db:"duration_ms" json:"duration_ms"`
}

// Store is the SQLite-backed ledger. It implements pipeline.Recorder.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open creates or opens the ledger at path, creating its directory and
// schema when needed. Use ":memory:" for a throwaway ledger.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_fk=1"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; a ":memory:" database also lives in a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Debug("ingestion ledger ready", slog.String("path", path))
	return &Store{db: db, logger: logger.With(slog.String("component", "history"))}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one ingestion attempt.
func (s *Store) Record(ctx context.Context, rec pipeline.Record) error {
	entry := entryFromRecord(rec)

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO ingestions (
			ingestion_id, ingested_at, trigger_name, data_type, label, raw_file,
			processed_file, rows_in, rows_out, duplicates_removed, nulls_filled,
			future_rows, degraded, warnings, outcome, error, duration_ms
		) VALUES (
			:ingestion_id, :ingested_at, :trigger_name, :data_type, :label, :raw_file,
			:processed_file, :rows_in, :rows_out, :duplicates_removed, :nulls_filled,
			:future_rows, :degraded, :warnings, :outcome, :error, :duration_ms
		)`, entry)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion: %w", err)
	}

	s.logger.DebugContext(ctx, "recorded ingestion",
		slog.String("ingestion_id", entry.IngestionID),
		slog.String("outcome", entry.Outcome))
	return nil
}

// Recent returns up to limit entries, newest first. limit is clamped to
// [1, MaxLimit]; zero or less means DefaultLimit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)

	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM ingestions
		ORDER BY ingested_at DESC, id DESC
		LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("failed to query ingestions: %w", err)
	}
	return entries, nil
}

// CountByOutcome returns the number of ledger rows per outcome.
func (s *Store) CountByOutcome(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Outcome string `db:"outcome"`
		N       int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT outcome, COUNT(*) AS n FROM ingestions GROUP BY outcome`); err != nil {
		return nil, fmt.Errorf("failed to count ingestions: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Outcome] = r.N
	}
	return counts, nil
}

// ClampLimit normalizes a requested page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func entryFromRecord(rec pipeline.Record) Entry {
	res := rec.Result
	if res == nil {
		res = &pipeline.Result{}
	}

	e := Entry{
		IngestionID:       uuid.NewString(),
		IngestedAt:        res.StartedAt.UTC(),
		Trigger:           string(res.Trigger),
		DataType:          res.Routine,
		Label:             res.Label,
		RawFile:           baseName(res.RawPath),
		ProcessedFile:     baseName(res.StampedPath),
		RowsIn:            res.RowsIn,
		RowsOut:           res.RowsOut,
		DuplicatesRemoved: res.Stats.DuplicatesRemoved,
		NullsFilled:       res.Stats.NullsFilled,
		FutureRows:        res.FutureRows,
		Degraded:          res.Degraded,
		Warnings:          strings.Join(res.Warnings, "; "),
		Outcome:           pipeline.StatusSuccess,
		DurationMS:        res.Duration.Milliseconds(),
	}
	if e.IngestedAt.IsZero() {
		e.IngestedAt = time.Now().UTC()
	}
	if rec.Err != nil {
		e.Outcome = "error"
		e.Error = rec.Err.Error()
	}
	return e
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
