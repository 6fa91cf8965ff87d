package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenbook/platform/internal/appointments"
	"github.com/serenbook/platform/internal/availability"
	"github.com/serenbook/platform/internal/calendarsync"
)

type calProvider struct {
	remote      map[string]calendarsync.Event
	nextID      int
	authExpired bool
}

func newCalProvider() *calProvider {
	return &calProvider{remote: make(map[string]calendarsync.Event)}
}

func (p *calProvider) CreateEvent(_ context.Context, _ uuid.UUID, ev calendarsync.Event) (string, error) {
	if p.authExpired {
		return "", calendarsync.ErrAuthExpired
	}
	p.nextID++
	id := fmt.Sprintf("evt-%d", p.nextID)
	ev.ID = id
	p.remote[id] = ev
	return id, nil
}

func (p *calProvider) UpdateEvent(_ context.Context, _ uuid.UUID, eventID string, ev calendarsync.Event) error {
	if p.authExpired {
		return calendarsync.ErrAuthExpired
	}
	ev.ID = eventID
	p.remote[eventID] = ev
	return nil
}

func (p *calProvider) DeleteEvent(_ context.Context, _ uuid.UUID, eventID string) error {
	delete(p.remote, eventID)
	return nil
}

func (p *calProvider) ListEvents(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]calendarsync.Event, error) {
	if p.authExpired {
		return nil, calendarsync.ErrAuthExpired
	}
	out := make([]calendarsync.Event, 0, len(p.remote))
	for _, ev := range p.remote {
		out = append(out, ev)
	}
	return out, nil
}

type calLinks struct {
	links []calendarsync.Link
}

func (s *calLinks) ListByProfessional(_ context.Context, professionalID uuid.UUID, provider string) ([]calendarsync.Link, error) {
	var out []calendarsync.Link
	for _, l := range s.links {
		if l.ProfessionalID == professionalID && l.Provider == provider {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *calLinks) Insert(_ context.Context, link calendarsync.Link) (*calendarsync.Link, error) {
	link.ID = uuid.New()
	s.links = append(s.links, link)
	return &link, nil
}

func (s *calLinks) Delete(_ context.Context, id uuid.UUID) error {
	for i, l := range s.links {
		if l.ID == id {
			s.links = append(s.links[:i], s.links[i+1:]...)
			return nil
		}
	}
	return calendarsync.ErrLinkNotFound
}

type calAppts struct {
	appts []appointments.Appointment
}

func (s *calAppts) ListActiveInWindow(_ context.Context, professionalID uuid.UUID, _, _ time.Time) ([]appointments.Appointment, error) {
	var out []appointments.Appointment
	for _, a := range s.appts {
		if a.ProfessionalID == professionalID && a.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *calAppts) GetByID(_ context.Context, id uuid.UUID) (*appointments.Appointment, error) {
	for _, a := range s.appts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, appointments.ErrNotFound
}

type calendarFixture struct {
	provider       *calProvider
	links          *calLinks
	appts          *calAppts
	router         *chi.Mux
	professionalID uuid.UUID
}

func newCalendarFixture(t *testing.T) *calendarFixture {
	t.Helper()
	provider := newCalProvider()
	links := &calLinks{}
	appts := &calAppts{}
	store := availability.NewStore(newMemBlockRepo(), time.Minute, nil)
	reconciler := calendarsync.NewReconciler(appts, store, links, provider, 14*24*time.Hour, nil)
	h := NewCalendarHandler(reconciler, nil, nil)

	router := chi.NewRouter()
	router.Post("/professionals/{professionalID}/calendar/push", h.Push)
	router.Post("/professionals/{professionalID}/calendar/pull", h.Pull)
	return &calendarFixture{provider: provider, links: links, appts: appts, router: router, professionalID: uuid.New()}
}

func (f *calendarFixture) path(direction string) string {
	return "/professionals/" + f.professionalID.String() + "/calendar/" + direction
}

func TestCalendarPushReportsCounts(t *testing.T) {
	f := newCalendarFixture(t)
	day := time.Now().UTC().AddDate(0, 0, 3)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	f.appts.appts = append(f.appts.appts, appointments.Appointment{
		ID:              uuid.New(),
		ProfessionalID:  f.professionalID,
		Date:            day,
		StartTime:       "10:00",
		DurationMinutes: 60,
		Status:          appointments.StatusConfirmed,
	})

	var resp syncResponse
	rec := doJSON(t, f.router, http.MethodPost, f.path("push"), nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, resp.Created)
	assert.Zero(t, resp.Failed)
	assert.Len(t, f.provider.remote, 1)
	assert.Len(t, f.links.links, 1)
}

func TestCalendarPullAuthExpired(t *testing.T) {
	f := newCalendarFixture(t)
	f.provider.authExpired = true

	var resp errorResponse
	rec := doJSON(t, f.router, http.MethodPost, f.path("pull"), nil, &resp)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "auth_expired", resp.Code)
}
