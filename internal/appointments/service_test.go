package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubApptStore struct {
	appt       *Appointment
	statusSets []Status
}

func (s *stubApptStore) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if s.appt == nil || s.appt.ID != id {
		return nil, ErrNotFound
	}
	appt := *s.appt
	return &appt, nil
}

func (s *stubApptStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	s.statusSets = append(s.statusSets, status)
	s.appt.Status = status
	return nil
}

func pendingAppointment() *Appointment {
	return &Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		ProfessionalID:  uuid.New(),
		Date:            time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:00",
		DurationMinutes: 30,
		Status:          StatusPending,
	}
}

func TestConfirmPending(t *testing.T) {
	store := &stubApptStore{appt: pendingAppointment()}
	svc := NewService(store, nil)

	appt, err := svc.Confirm(context.Background(), store.appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if appt.Status != StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", appt.Status)
	}
}

func TestConfirmTwiceIsNoOp(t *testing.T) {
	store := &stubApptStore{appt: pendingAppointment()}
	svc := NewService(store, nil)

	if _, err := svc.Confirm(context.Background(), store.appt.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Confirm(context.Background(), store.appt.ID); err != nil {
		t.Fatal(err)
	}
	if len(store.statusSets) != 1 {
		t.Fatalf("expected a single status write, got %d", len(store.statusSets))
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	appt := pendingAppointment()
	appt.Status = StatusCancelled
	store := &stubApptStore{appt: appt}
	svc := NewService(store, nil)

	if _, err := svc.Confirm(context.Background(), appt.ID); err == nil {
		t.Fatal("confirming a cancelled appointment should fail")
	}
	if len(store.statusSets) != 0 {
		t.Fatal("illegal transition must not write")
	}
}

func TestStatusTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestIntervalAdaptsToTimeRange(t *testing.T) {
	appt := pendingAppointment()
	iv := appt.Interval()
	if iv.StartMin != 540 || iv.EndMin != 570 {
		t.Fatalf("interval = [%d, %d), want [540, 570)", iv.StartMin, iv.EndMin)
	}
}

func TestStartsAt(t *testing.T) {
	appt := pendingAppointment()
	at, err := appt.StartsAt()
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, time.September, 7, 9, 0, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("StartsAt = %v, want %v", at, want)
	}
}
