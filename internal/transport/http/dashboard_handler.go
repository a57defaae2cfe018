package http

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/scscodes/flsd/internal/errors"
	"github.com/scscodes/flsd/internal/pipeline"
	"github.com/scscodes/flsd/internal/services"
)

// XLSXContentType is the media type of exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

//go:embed templates/*.html
var templateFS embed.FS

// DashboardService is the part of services.DashboardService used by
// DashboardHandler.
type DashboardService interface {
	Overview(ctx context.Context) (*services.Overview, error)
	TypeView(ctx context.Context, dataType string) (*services.TypeView, error)
	ExportLatest(ctx context.Context, out io.Writer) error
}

// DashboardHandler renders the HTML dashboard
type DashboardHandler struct {
	service      DashboardService
	pages        map[string]*template.Template
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler parses the embedded templates
func NewDashboardHandler(service DashboardService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) (*DashboardHandler, error) {
	funcs := template.FuncMap{"types": pipeline.KnownLabels}

	pages := make(map[string]*template.Template, 2)
	for _, page := range []string{"index.html", "type.html"} {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, err
		}
		pages[page] = tmpl
	}

	return &DashboardHandler{
		service:      service,
		pages:        pages,
		logger:       logger.With(slog.String("handler", "dashboard")),
		errorHandler: errorHandler,
	}, nil
}

// Index handles GET /
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Overview(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.render(w, r, "index.html", view)
}

// Type handles GET /type/{data_type}
func (h *DashboardHandler) Type(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.TypeView(r.Context(), chi.URLParam(r, "data_type"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.render(w, r, "type.html", view)
}

// ExportLatest handles GET /export/latest.xlsx
func (h *DashboardHandler) ExportLatest(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := h.service.ExportLatest(r.Context(), &buf)
	if errors.Is(err, services.ErrNoLatest) {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("processed data"))
		return
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="latest.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write workbook", slog.String("error", err.Error()))
	}
}

func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request, page string, data interface{}) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, page, data); err != nil {
		h.logger.ErrorContext(r.Context(), "template execution failed",
			slog.String("page", page),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
