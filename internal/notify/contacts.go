package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrContactNotFound is returned when no user matches the lookup.
var ErrContactNotFound = errors.New("notify: contact not found")

// Contact is a deliverable recipient.
type Contact struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// ContactDirectory resolves user IDs to deliverable addresses.
type ContactDirectory interface {
	GetContact(ctx context.Context, id uuid.UUID) (*Contact, error)
}

// PGDirectory reads contacts from the users table.
type PGDirectory struct {
	pool *pgxpool.Pool
}

func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	if pool == nil {
		panic("notify: pgx pool required")
	}
	return &PGDirectory{pool: pool}
}

func (d *PGDirectory) GetContact(ctx context.Context, id uuid.UUID) (*Contact, error) {
	var c Contact
	err := d.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("notify: load contact: %w", err)
	}
	return &c, nil
}
