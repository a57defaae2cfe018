package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/scscodes/flsd/internal/config"
	apierrors "github.com/scscodes/flsd/internal/errors"
	"github.com/scscodes/flsd/internal/exporter"
	"github.com/scscodes/flsd/internal/files"
	"github.com/scscodes/flsd/internal/pipeline"
	"github.com/scscodes/flsd/internal/table"
)

// Dashboard copy.
const (
	DashboardTitle = "FLSD Financial Dashboard"
	NoDataWarning  = "No processed data found. Upload a CSV to data/raw and run the nightly update."
)

// TypeViewRows caps the rows rendered per table on a type page.
const TypeViewRows = 100

// ErrNoLatest is returned when latest.csv has not been published yet.
var ErrNoLatest = errors.New("no processed data")

// TableView is a table rendered to strings for templates.
type TableView struct {
	Columns   []string
	Rows      [][]string
	Total     int
	Truncated bool
}

// Overview backs the dashboard landing page.
type Overview struct {
	Title        string
	HasData      bool
	Warning      string
	LastModified time.Time
	Preview      *TableView
}

// TypeView backs the per-type dashboard page.
type TypeView struct {
	Title    string
	Type     string
	File     string
	Known    bool
	Warnings []string
	Table    *TableView
	History  *TableView
	Future   *TableView
}

// DashboardService prepares processed output for display.
type DashboardService struct {
	paths       *config.Paths
	discovery   *files.Discovery
	previewRows int
	now         func() time.Time
	logger      *slog.Logger
}

// NewDashboardService creates a DashboardService showing previewRows rows of
// latest.csv on the landing page.
func NewDashboardService(paths *config.Paths, previewRows int, now func() time.Time, logger *slog.Logger) *DashboardService {
	if previewRows <= 0 {
		previewRows = config.DefaultPreviewRows
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		paths:       paths,
		discovery:   files.NewDiscovery(paths.DataDir),
		previewRows: previewRows,
		now:         now,
		logger:      logger.With(slog.String("component", "dashboard_service")),
	}
}

// Overview previews latest.csv. A missing file yields HasData false and the
// upload hint as Warning.
func (s *DashboardService) Overview(ctx context.Context) (*Overview, error) {
	view := &Overview{Title: DashboardTitle}

	t, info, err := s.readLatest()
	if errors.Is(err, ErrNoLatest) {
		view.Warning = NoDataWarning
		return view, nil
	}
	if err != nil {
		return nil, err
	}

	view.HasData = true
	view.LastModified = info.ModTime()
	view.Preview = newTableView(t, s.previewRows)

	s.logger.DebugContext(ctx, "overview rendered",
		slog.Int("rows", t.Len()),
		slog.Int("preview_rows", len(view.Preview.Rows)))
	return view, nil
}

// TypeView shows the newest stamped file of dataType. Missing expected
// columns produce warnings, not errors. Forecast rows are split into history
// (date up to today) and future.
func (s *DashboardService) TypeView(ctx context.Context, dataType string) (*TypeView, error) {
	label := pipeline.NormalizeLabel(dataType)
	dt := pipeline.ParseDataType(label)

	view := &TypeView{
		Title: DashboardTitle,
		Type:  label,
		Known: dt != pipeline.Default,
	}

	found, err := s.discovery.FindByType(s.paths.ProcessedDir, label)
	if err != nil {
		return nil, apierrors.NewStorageError("failed to list processed files", err).WithContext("type", label)
	}
	if len(found) == 0 {
		view.Warnings = append(view.Warnings, fmt.Sprintf("No processed data found for type: %s", label))
		return view, nil
	}

	newest := found[0]
	view.File = newest.Name

	t, err := table.ReadFile(newest.Path)
	if err != nil {
		return nil, apierrors.NewParsingError("failed to read processed file", err).WithContext("file", newest.Name)
	}

	for _, col := range t.Missing(dt.ExpectedColumns()...) {
		view.Warnings = append(view.Warnings, fmt.Sprintf("Expected column %q is missing", col))
	}

	if dt == pipeline.Forecast && t.Index("date") >= 0 {
		hist, future, err := splitForecast(t, pipeline.StartOfDay(s.now()))
		if err != nil {
			view.Warnings = append(view.Warnings, fmt.Sprintf("Could not split forecast by date: %v", err))
		} else {
			view.History = newTableView(hist, TypeViewRows)
			view.Future = newTableView(future, TypeViewRows)
		}
	}
	if view.History == nil {
		view.Table = newTableView(t, TypeViewRows)
	}

	s.logger.DebugContext(ctx, "type view rendered",
		slog.String("type", label),
		slog.String("file", newest.Name),
		slog.Int("warnings", len(view.Warnings)))
	return view, nil
}

// ExportLatest writes latest.csv as an Excel workbook to out.
func (s *DashboardService) ExportLatest(ctx context.Context, out io.Writer) error {
	t, _, err := s.readLatest()
	if err != nil {
		return err
	}

	if err := exporter.WriteWorkbook(out, t, exporter.DefaultSheet); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "latest exported", slog.Int("rows", t.Len()))
	return nil
}

func (s *DashboardService) readLatest() (*table.Table, fs.FileInfo, error) {
	path := s.paths.LatestFile()

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrNoLatest
	}
	if err != nil {
		return nil, nil, apierrors.NewStorageError("failed to stat latest file", err)
	}

	t, err := table.ReadFile(path)
	if err != nil {
		return nil, nil, apierrors.NewParsingError("failed to read latest file", err)
	}
	return t, info, nil
}

// splitForecast partitions rows on date <= cutoff.
func splitForecast(t *table.Table, cutoff time.Time) (*table.Table, *table.Table, error) {
	parsed := t.Clone()
	if err := parsed.ParseTimeColumn("date"); err != nil {
		return nil, nil, err
	}

	col := parsed.Index("date")
	hist := table.New(t.Columns...)
	future := table.New(t.Columns...)
	for r, row := range parsed.Rows {
		c := row[col]
		if !c.Null && c.Time.After(cutoff) {
			future.AddRow(t.Rows[r]...)
		} else {
			hist.AddRow(t.Rows[r]...)
		}
	}
	return hist, future, nil
}

func newTableView(t *table.Table, limit int) *TableView {
	header, rows := t.Head(limit).Records()
	return &TableView{
		Columns:   header,
		Rows:      rows,
		Total:     t.Len(),
		Truncated: t.Len() > limit,
	}
}
