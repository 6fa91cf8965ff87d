package payments

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

// ErrPaymentNotFound is returned when the lookup matches no payment.
var ErrPaymentNotFound = errors.New("payments: payment not found")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists payments and lifecycle transitions.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by pgx.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting a mocked pgx interface for tests.
func NewRepositoryWithQuerier(db querier) *Repository {
	return &Repository{db: db}
}

const paymentColumns = `id, appointment_id, professional_id, provider, session_id,
	provider_ref, amount_cents, currency, status, created_at, updated_at`

// Insert stores a new payment, defaulting to pending.
func (r *Repository) Insert(ctx context.Context, p Payment) (*Payment, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	query := `
		INSERT INTO payments (id, appointment_id, professional_id, provider, session_id,
			provider_ref, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + paymentColumns
	row := r.db.QueryRow(ctx, query, p.ID, p.AppointmentID, p.ProfessionalID, p.Provider,
		p.SessionID, p.ProviderRef, p.AmountCents, p.Currency, string(p.Status))
	inserted, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("payments: insert: %w", err)
	}
	return inserted, nil
}

// GetByID fetches one payment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: load by id: %w", err)
	}
	return p, nil
}

// GetBySession fetches the payment owning a provider checkout session.
func (r *Repository) GetBySession(ctx context.Context, sessionID string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = $1`
	p, err := scanPayment(r.db.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: load by session: %w", err)
	}
	return p, nil
}

// ListUnsettled returns pending payments created before the cutoff, oldest
// first. The reconciler sweeps these against the processor.
func (r *Repository) ListUnsettled(ctx context.Context, before time.Time, limit int32) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("payments: list unsettled: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("payments: scan payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateStatus records a transition and the provider reference that proved it.
// An empty providerRef keeps the stored value.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, providerRef string) error {
	query := `UPDATE payments
		SET status = $2,
			provider_ref = CASE WHEN $3 = '' THEN provider_ref ELSE $3 END,
			updated_at = now()
		WHERE id = $1`
	ct, err := r.db.Exec(ctx, query, id, string(status), providerRef)
	if err != nil {
		return fmt.Errorf("payments: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p      Payment
		status string
	)
	err := row.Scan(&p.ID, &p.AppointmentID, &p.ProfessionalID, &p.Provider, &p.SessionID,
		&p.ProviderRef, &p.AmountCents, &p.Currency, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	return &p, nil
}
