package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/scscodes/flsd/internal/errors"
	"github.com/scscodes/flsd/internal/services"
	"github.com/scscodes/flsd/internal/shared/testutil"
)

type fakeDashboard struct {
	overview  *services.Overview
	typeView  *services.TypeView
	exportErr error
	lastType  string
}

func (f *fakeDashboard) Overview(context.Context) (*services.Overview, error) {
	return f.overview, nil
}

func (f *fakeDashboard) TypeView(_ context.Context, dataType string) (*services.TypeView, error) {
	f.lastType = dataType
	return f.typeView, nil
}

func (f *fakeDashboard) ExportLatest(_ context.Context, out io.Writer) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	_, err := out.Write([]byte("PK-workbook"))
	return err
}

func newDashboardRouter(t *testing.T, svc DashboardService) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h, err := NewDashboardHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/", h.Index)
	r.Get("/type/{data_type}", h.Type)
	r.Get("/export/latest.xlsx", h.ExportLatest)
	return r
}

func TestDashboardHandler_Index(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		router := newDashboardRouter(t, &fakeDashboard{overview: &services.Overview{
			Title:   services.DashboardTitle,
			Warning: services.NoDataWarning,
		}})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<title>FLSD Financial Dashboard</title>")
		assert.Contains(t, rec.Body.String(), "No processed data found. Upload a CSV to data/raw and run the nightly update.")
		assert.NotContains(t, rec.Body.String(), "<table>")
	})

	t.Run("preview", func(t *testing.T) {
		router := newDashboardRouter(t, &fakeDashboard{overview: &services.Overview{
			Title:   services.DashboardTitle,
			HasData: true,
			Preview: &services.TableView{
				Columns:   []string{"date", "amount"},
				Rows:      [][]string{{"2024-01-01", "10"}, {"2024-01-02", "<b>"}},
				Total:     9,
				Truncated: true,
			},
		}})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Latest processed data:")
		assert.Contains(t, body, "<th>amount</th>")
		assert.Contains(t, body, "<td>2024-01-01</td>")
		assert.Contains(t, body, "&lt;b&gt;")
		assert.Contains(t, body, "Showing 2 of 9 rows.")
		assert.Contains(t, body, `href="/type/forecast"`)
	})
}

func TestDashboardHandler_Type(t *testing.T) {
	svc := &fakeDashboard{typeView: &services.TypeView{
		Title:    services.DashboardTitle,
		Type:     "forecast",
		File:     "forecast_20240602_f.csv",
		Known:    true,
		Warnings: []string{`Expected column "prediction" is missing`},
		History:  &services.TableView{Columns: []string{"date"}, Rows: [][]string{{"2024-06-01"}}},
		Future:   &services.TableView{Columns: []string{"date"}, Rows: [][]string{{"2024-06-03"}}},
	}}
	router := newDashboardRouter(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/type/forecast", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "forecast", svc.lastType)
	body := rec.Body.String()
	assert.Contains(t, body, "forecast_20240602_f.csv")
	assert.Contains(t, body, "Expected column &#34;prediction&#34; is missing")
	assert.Contains(t, body, "<h3>History</h3>")
	assert.Contains(t, body, "<td>2024-06-03</td>")
}

func TestDashboardHandler_ExportLatest(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "workbook", wantStatus: http.StatusOK},
		{name: "nothing published", err: services.ErrNoLatest, wantStatus: http.StatusNotFound},
		{name: "read failure", err: errors.New("corrupt"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newDashboardRouter(t, &fakeDashboard{exportErr: tt.err})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/latest.xlsx", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, XLSXContentType, rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Header().Get("Content-Disposition"), "latest.xlsx")
				assert.Equal(t, "PK-workbook", rec.Body.String())
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	paths := newHandlerPaths(t)
	h := NewHealthHandler(services.NewHealthService("dashboard", "1.0.0", paths, nil))

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "dashboard", body["service"])
}
