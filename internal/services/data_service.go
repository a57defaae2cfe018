package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scscodes/flsd/internal/config"
	"github.com/scscodes/flsd/internal/files"
	"github.com/scscodes/flsd/internal/history"
	"github.com/scscodes/flsd/internal/pipeline"
)

// Status values reported by LatestInfo.
const (
	StatusSuccess = pipeline.StatusSuccess
	StatusNoData  = pipeline.StatusNoData
	StatusError   = "error"
)

// ErrHistoryDisabled is returned when no ingestion ledger is configured.
var ErrHistoryDisabled = errors.New("ingestion history is disabled")

// HistoryReader lists recorded ingestions.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	CountByOutcome(ctx context.Context) (map[string]int, error)
}

// TypesResponse lists the recognized data types.
type TypesResponse struct {
	DataTypes        []string `json:"data_types"`
	NamingConvention string   `json:"naming_convention"`
}

// LatestInfo describes the newest processed file of one type.
type LatestInfo struct {
	Status       string `json:"status"`
	Filename     string `json:"filename,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	SizeBytes    *int64 `json:"size_bytes,omitempty"`
	Message      string `json:"message,omitempty"`
}

// DataService answers read-only questions about processed output.
type DataService struct {
	processedDir string
	discovery    *files.Discovery
	history      HistoryReader
	logger       *slog.Logger
}

// NewDataService creates a DataService. history may be nil.
func NewDataService(paths *config.Paths, history HistoryReader, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataService{
		processedDir: paths.ProcessedDir,
		discovery:    files.NewDiscovery(paths.DataDir),
		history:      history,
		logger:       logger.With(slog.String("component", "data_service")),
	}
}

// Types returns the recognized data types and the upload naming convention.
func (ds *DataService) Types() TypesResponse {
	return TypesResponse{
		DataTypes:        pipeline.KnownLabels(),
		NamingConvention: config.NamingConvention,
	}
}

// Latest reports the newest {dataType}_*.csv in the processed directory.
// Lookup failures are reported through the status field, never as an error.
func (ds *DataService) Latest(ctx context.Context, dataType string) LatestInfo {
	found, err := ds.discovery.FindByType(ds.processedDir, dataType)
	if err != nil {
		ds.logger.WarnContext(ctx, "latest lookup failed",
			slog.String("type", dataType),
			slog.String("error", err.Error()))
		return LatestInfo{Status: StatusError, Message: err.Error()}
	}

	latest, ok := files.GetLatestFile(found)
	if !ok {
		return LatestInfo{
			Status:  StatusNoData,
			Message: fmt.Sprintf("No processed data found for type: %s", dataType),
		}
	}

	size := latest.Size
	return LatestInfo{
		Status:       StatusSuccess,
		Filename:     latest.Name,
		LastModified: latest.ModTime.Format(time.RFC3339),
		SizeBytes:    &size,
	}
}

// History returns up to limit recent ingestions, newest first.
func (ds *DataService) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if ds.history == nil {
		return nil, ErrHistoryDisabled
	}

	entries, err := ds.history.Recent(ctx, history.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read ingestion history: %w", err)
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return entries, nil
}

// Outcomes returns the number of recorded ingestions per outcome.
func (ds *DataService) Outcomes(ctx context.Context) (map[string]int, error) {
	if ds.history == nil {
		return nil, ErrHistoryDisabled
	}

	counts, err := ds.history.CountByOutcome(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count ingestions: %w", err)
	}
	return counts, nil
}
