package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/scscodes/flsd/internal/errors"
	"github.com/scscodes/flsd/internal/history"
	"github.com/scscodes/flsd/internal/middleware"
	"github.com/scscodes/flsd/internal/services"
)

// DataService is the part of services.DataService used by DataHandler.
type DataService interface {
	Types() services.TypesResponse
	Latest(ctx context.Context, dataType string) services.LatestInfo
	History(ctx context.Context, limit int) ([]history.Entry, error)
	Outcomes(ctx context.Context) (map[string]int, error)
}

// DataHandler serves read-only data endpoints
type DataHandler struct {
	service      DataService
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler
func NewDataHandler(service DataService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		query:        middleware.NewQueryParamValidator(errorHandler),
		logger:       logger.With(slog.String("handler", "data")),
		errorHandler: errorHandler,
	}
}

// Routes returns the /data routes
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/types", h.GetTypes)
	r.Get("/latest/{data_type}", h.GetLatest)
	r.Get("/history", h.GetHistory)
	return r
}

// GetTypes handles GET /data/types
func (h *DataHandler) GetTypes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Types())
}

// GetLatest handles GET /data/latest/{data_type}. Missing data and lookup
// failures are reported in the body with status 200.
func (h *DataHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Latest(r.Context(), chi.URLParam(r, "data_type")))
}

// GetHistory handles GET /data/history?limit=N
func (h *DataHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, history.MaxLimit, history.DefaultLimit)
	if !ok {
		return
	}

	entries, err := h.service.History(r.Context(), limit)
	if errors.Is(err, services.ErrHistoryDisabled) {
		h.errorHandler.HandleError(w, r, apierrors.NewUnavailableError("Ingestion history is disabled", err))
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read history", slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.NewStorageError("failed to read ingestion history", err))
		return
	}

	resp := map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	}
	if outcomes, err := h.service.Outcomes(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "failed to count outcomes", slog.String("error", err.Error()))
	} else {
		resp["outcomes"] = outcomes
	}
	render.JSON(w, r, resp)
}
