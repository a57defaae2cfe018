package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/scscodes/flsd/internal/errors"
	"github.com/scscodes/flsd/internal/pipeline"
)

// UploadStamp is the timestamp layout embedded in stored upload names.
const UploadStamp = "20060102150405"

// Uploads stores raw upload bodies.
type Uploads interface {
	SaveUpload(name string, src io.Reader) (string, int64, error)
}

// Selection runs one pass of the ingestion selector.
type Selection interface {
	SelectAndProcess(ctx context.Context, rawDir string) (*pipeline.Outcome, error)
}

// UploadResponse is returned for a processed upload.
type UploadResponse struct {
	Filename      string `json:"filename"`
	SavedAs       string `json:"saved_as"`
	Type          string `json:"type"`
	ProcessedFile string `json:"processed_file"`
	Status        string `json:"status"`
}

// IngestService stores uploads and runs them through the pipeline.
type IngestService struct {
	uploads    Uploads
	dispatcher pipeline.Processor
	selector   Selection
	rawDir     string
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// NewIngestService creates an IngestService. rawDir is handed to the
// selector for manual runs.
func NewIngestService(uploads Uploads, dispatcher pipeline.Processor, selector Selection, rawDir string, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		uploads:    uploads,
		dispatcher: dispatcher,
		selector:   selector,
		rawDir:     rawDir,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     logger.With(slog.String("component", "ingest_service")),
	}
}

// UploadName derives the stored name for an upload of the given type.
func UploadName(dataType string, now time.Time, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s_%s.csv", dataType, now.Format(UploadStamp), id)
}

// Upload saves src under a fresh raw name and dispatches it synchronously.
// filename must already satisfy the upload naming convention.
func (s *IngestService) Upload(ctx context.Context, filename string, src io.Reader) (*UploadResponse, error) {
	parts := strings.Split(filename, "_")
	dataType := pipeline.NormalizeLabel(strings.ToLower(parts[0]))
	savedAs := UploadName(dataType, s.now(), s.newID())

	logger := s.logger.With(
		slog.String("filename", filename),
		slog.String("saved_as", savedAs),
		slog.String("type", dataType),
	)

	rawPath, size, err := s.uploads.SaveUpload(savedAs, src)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, err
		}
		logger.ErrorContext(ctx, "Error processing upload", slog.String("error", err.Error()))
		return nil, apierrors.ProcessingError(err)
	}
	logger.InfoContext(ctx, "upload stored", slog.Int64("bytes", size))

	ctx = pipeline.WithTrigger(ctx, pipeline.TriggerUpload)
	result, err := s.dispatcher.Dispatch(ctx, rawPath, dataType)
	if err != nil {
		logger.ErrorContext(ctx, "Error processing upload", slog.String("error", err.Error()))
		return nil, apierrors.ProcessingError(err)
	}

	return &UploadResponse{
		Filename:      filename,
		SavedAs:       savedAs,
		Type:          dataType,
		ProcessedFile: result.StampedPath,
		Status:        pipeline.StatusSuccess,
	}, nil
}

// RunLatest processes the newest raw file once.
func (s *IngestService) RunLatest(ctx context.Context, trigger pipeline.Trigger) (*pipeline.Outcome, error) {
	ctx = pipeline.WithTrigger(ctx, trigger)
	outcome, err := s.selector.SelectAndProcess(ctx, s.rawDir)
	if err != nil {
		return nil, apierrors.NewStorageError("nightly ingestion failed", err).
			WithOp("select").
			WithContext("raw_dir", s.rawDir).
			WithContext("trigger", string(trigger))
	}
	return outcome, nil
}
