package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/availability"
	"github.com/serenbook/platform/internal/http/handlers"
	"github.com/serenbook/platform/internal/scheduling"
)

type noBlocks struct{}

func (noBlocks) Load(context.Context, uuid.UUID, bool) ([]availability.Block, error) {
	return nil, nil
}

type noAppts struct{}

func (noAppts) ListActiveOnDate(context.Context, uuid.UUID, time.Time) ([]appointments.Appointment, error) {
	return nil, nil
}

func newTestRouter() http.Handler {
	gen := scheduling.NewGenerator(noBlocks{}, noAppts{}, scheduling.WorkingHours{
		Start: "09:00",
		End:   "10:00",
	}, 30*time.Minute)
	return New(&Config{
		Health:             handlers.NewHealthHandler(nil, nil),
		Slots:              handlers.NewSlotsHandler(gen, nil, nil),
		MetricsHandler:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		CORSAllowedOrigins: []string{"https://app.serenbook.test"},
	})
}

func TestRouterServesHealth(t *testing.T) {
	r := newTestRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterServesMetrics(t *testing.T) {
	r := newTestRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterServesSlots(t *testing.T) {
	r := newTestRouter()

	path := "/professionals/" + uuid.NewString() + "/slots?date=2026-09-10"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slots"`)
}

func TestRouterSkipsUnconfiguredRoutes(t *testing.T) {
	r := New(&Config{Health: handlers.NewHealthHandler(nil, nil)})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/reconcile/payments", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterAppliesCORS(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.serenbook.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.serenbook.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
