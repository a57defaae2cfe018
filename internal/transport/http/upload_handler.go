package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "github.com/scscodes/flsd/internal/errors"
	"github.com/scscodes/flsd/internal/pipeline"
	"github.com/scscodes/flsd/internal/services"
)

// UploadField is the multipart field carrying the CSV file.
const UploadField = "file"

// IngestService is the part of services.IngestService used by the handlers.
type IngestService interface {
	Upload(ctx context.Context, filename string, src io.Reader) (*services.UploadResponse, error)
	RunLatest(ctx context.Context, trigger pipeline.Trigger) (*pipeline.Outcome, error)
}

// UploadValidator checks uploaded filenames.
type UploadValidator interface {
	ValidateUpload(filename string) error
}

// UploadHandler accepts CSV uploads and manual ingestion runs
type UploadHandler struct {
	service      IngestService
	validator    UploadValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(service IngestService, validator UploadValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *UploadHandler {
	return &UploadHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("handler", "upload")),
		errorHandler: errorHandler,
	}
}

// Upload handles POST /upload/. The file part is streamed straight to the
// raw directory; the body size cap is applied by middleware.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	mr, err := r.MultipartReader()
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.handleReadError(w, r, err)
			return
		}

		if part.FormName() != UploadField {
			part.Close()
			continue
		}

		filename := part.FileName()
		if err := h.validator.ValidateUpload(filename); err != nil {
			part.Close()
			h.errorHandler.HandleError(w, r, err)
			return
		}

		h.logger.InfoContext(r.Context(), "upload received",
			slog.String("request_id", reqID),
			slog.String("filename", filename),
		)

		resp, err := h.service.Upload(r.Context(), filename, part)
		part.Close()
		if err != nil {
			h.handleReadError(w, r, err)
			return
		}

		render.JSON(w, r, resp)
		return
	}

	h.errorHandler.HandleError(w, r, apierrors.ErrValidation(UploadField, "file is required"))
}

// IngestLatest handles POST /ingest/latest
func (h *UploadHandler) IngestLatest(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.RunLatest(r.Context(), pipeline.TriggerManual)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, outcome)
}

func (h *UploadHandler) handleReadError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.errorHandler.HandleError(w, r, maxBytesErr)
		return
	}
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
}
