package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/availability"
	"github.com/serenbook/platform/internal/scheduling"
)

type memApptSource struct {
	appts []appointments.Appointment
}

func (m *memApptSource) ListActiveOnDate(_ context.Context, professionalID uuid.UUID, date time.Time) ([]appointments.Appointment, error) {
	var out []appointments.Appointment
	for _, a := range m.appts {
		if a.ProfessionalID == professionalID && a.Date.Equal(date) && a.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

type slotsFixture struct {
	repo           *memBlockRepo
	appts          *memApptSource
	router         *chi.Mux
	professionalID uuid.UUID
}

func newSlotsFixture(t *testing.T) *slotsFixture {
	t.Helper()
	repo := newMemBlockRepo()
	appts := &memApptSource{}
	store := availability.NewStore(repo, time.Minute, nil)
	gen := scheduling.NewGenerator(store, appts, scheduling.WorkingHours{
		Start: "09:00",
		End:   "17:00",
	}, time.Hour)
	h := NewSlotsHandler(gen, nil, nil)

	router := chi.NewRouter()
	router.Get("/professionals/{professionalID}/slots", h.List)
	return &slotsFixture{repo: repo, appts: appts, router: router, professionalID: uuid.New()}
}

func (f *slotsFixture) path(query string) string {
	return "/professionals/" + f.professionalID.String() + "/slots" + query
}

type slotsListResponse struct {
	Date  string         `json:"date"`
	Slots []slotResponse `json:"slots"`
}

func TestSlotsListSkipsBusyWindows(t *testing.T) {
	f := newSlotsFixture(t)
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC) // Thursday

	_, err := f.repo.Insert(context.Background(), availability.Block{
		ProfessionalID: f.professionalID,
		Type:           availability.BlockTimeRange,
		StartDate:      day,
		StartTime:      "13:00",
		EndTime:        "15:00",
	})
	require.NoError(t, err)
	f.appts.appts = append(f.appts.appts, appointments.Appointment{
		ID:              uuid.New(),
		ProfessionalID:  f.professionalID,
		Date:            day,
		StartTime:       "10:00",
		DurationMinutes: 60,
		Status:          appointments.StatusConfirmed,
	})

	var resp slotsListResponse
	rec := doJSON(t, f.router, http.MethodGet, f.path("?date=2026-09-10"), nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-09-10", resp.Date)

	clocks := make([]string, 0, len(resp.Slots))
	for _, s := range resp.Slots {
		assert.True(t, s.Available)
		clocks = append(clocks, s.Clock)
	}
	assert.Equal(t, []string{"09:00", "11:00", "12:00", "15:00", "16:00"}, clocks)
}

func TestSlotsListAllIncludesUnavailable(t *testing.T) {
	f := newSlotsFixture(t)
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	_, err := f.repo.Insert(context.Background(), availability.Block{
		ProfessionalID: f.professionalID,
		Type:           availability.BlockFullDay,
		StartDate:      day,
	})
	require.NoError(t, err)

	var resp slotsListResponse
	rec := doJSON(t, f.router, http.MethodGet, f.path("?date=2026-09-10&all=true"), nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Slots, 8)
	for _, s := range resp.Slots {
		assert.False(t, s.Available)
	}
}

func TestSlotsListExcludesAppointmentBeingMoved(t *testing.T) {
	f := newSlotsFixture(t)
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	apptID := uuid.New()
	f.appts.appts = append(f.appts.appts, appointments.Appointment{
		ID:              apptID,
		ProfessionalID:  f.professionalID,
		Date:            day,
		StartTime:       "09:00",
		DurationMinutes: 60,
		Status:          appointments.StatusConfirmed,
	})

	availableAt := func(resp slotsListResponse, clock string) bool {
		for _, s := range resp.Slots {
			if s.Clock == clock {
				return s.Available
			}
		}
		t.Fatalf("slot %s missing from response", clock)
		return false
	}

	var resp slotsListResponse
	rec := doJSON(t, f.router, http.MethodGet, f.path("?date=2026-09-10&all=true"), nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, availableAt(resp, "09:00"))

	rec = doJSON(t, f.router, http.MethodGet,
		f.path("?date=2026-09-10&all=true&exclude_appointment="+apptID.String()), nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, availableAt(resp, "09:00"))
}

func TestSlotsListRejectsBadExcludeID(t *testing.T) {
	f := newSlotsFixture(t)

	var resp errorResponse
	rec := doJSON(t, f.router, http.MethodGet, f.path("?date=2026-09-10&exclude_appointment=that-one"), nil, &resp)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_id", resp.Code)
}

func TestSlotsListWeekendIsEmpty(t *testing.T) {
	f := newSlotsFixture(t)

	var resp slotsListResponse
	rec := doJSON(t, f.router, http.MethodGet, f.path("?date=2026-09-12"), nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Slots)
}

func TestSlotsListRejectsBadDate(t *testing.T) {
	f := newSlotsFixture(t)

	var resp errorResponse
	rec := doJSON(t, f.router, http.MethodGet, f.path("?date=tomorrow"), nil, &resp)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_date", resp.Code)
}
