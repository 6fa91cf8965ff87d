package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an appointment id does not exist.
var ErrNotFound = errors.New("appointments: not found")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists appointments.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by pgx.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting a mocked pgx interface for tests.
func NewRepositoryWithQuerier(db querier) *Repository {
	return &Repository{db: db}
}

const appointmentColumns = `id, patient_id, professional_id, date, start_time,
	duration_minutes, cost_cents, status, payment_id, created_at, updated_at`

// GetByID fetches one appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: load: %w", err)
	}
	return appt, nil
}

// ListActiveOnDate returns non-cancelled appointments for the professional on
// the given day. These are the commitments slot generation checks against.
func (r *Repository) ListActiveOnDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE professional_id = $1 AND date = $2 AND status IN ('pending', 'confirmed')
		ORDER BY start_time`
	rows, err := r.db.Query(ctx, query, professionalID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: list on date: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListActiveInWindow returns non-cancelled appointments for the professional
// between from and to inclusive. Calendar push reads from this.
func (r *Repository) ListActiveInWindow(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE professional_id = $1 AND date >= $2 AND date <= $3 AND status IN ('pending', 'confirmed')
		ORDER BY date, start_time`
	rows, err := r.db.Query(ctx, query, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: list in window: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// Insert persists a new appointment in pending status.
func (r *Repository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	query := `
		INSERT INTO appointments
			(id, patient_id, professional_id, date, start_time, duration_minutes, cost_cents, status, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + appointmentColumns
	row := r.db.QueryRow(ctx, query, a.ID, a.PatientID, a.ProfessionalID, a.Date,
		a.StartTime, a.DurationMinutes, a.CostCents, string(a.Status), a.PaymentID)
	inserted, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return inserted, nil
}

// UpdateSchedule rewrites date and start time in place, preserving identity and
// payment linkage. This is the reschedule commit.
func (r *Repository) UpdateSchedule(ctx context.Context, id uuid.UUID, date time.Time, startTime string) error {
	query := `UPDATE appointments SET date = $2, start_time = $3, updated_at = now() WHERE id = $1`
	ct, err := r.db.Exec(ctx, query, id, date, startTime)
	if err != nil {
		return fmt.Errorf("appointments: update schedule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus transitions the appointment's lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	query := `UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`
	ct, err := r.db.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkPayment attaches a payment record to the appointment.
func (r *Repository) LinkPayment(ctx context.Context, id, paymentID uuid.UUID) error {
	query := `UPDATE appointments SET payment_id = $2, updated_at = now() WHERE id = $1`
	ct, err := r.db.Exec(ctx, query, id, paymentID)
	if err != nil {
		return fmt.Errorf("appointments: link payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var appts []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		appts = append(appts, *a)
	}
	return appts, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.ProfessionalID, &a.Date, &a.StartTime,
		&a.DurationMinutes, &a.CostCents, &status, &a.PaymentID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.Date = a.Date.UTC()
	return &a, nil
}
