// Package calendarsync keeps a professional's internal commitments and their
// external calendar in agreement, in both directions.
package calendarsync

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

// ResourceType names the internal side of a calendar link.
type ResourceType string

const (
	ResourceAppointment ResourceType = "appointment"
	ResourceBlock       ResourceType = "block"
)

// Link is the durable mapping between one internal commitment and one external
// calendar event. It is the idempotency key for push and the de-duplication
// key for pull.
type Link struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	ResourceType   ResourceType
	ResourceID     uuid.UUID
	Provider       string
	EventID        string
	CreatedAt      time.Time
}

// ErrLinkNotFound is returned when no link exists for the lookup.
var ErrLinkNotFound = errors.New("calendarsync: link not found")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LinkRepository persists calendar links.
type LinkRepository struct {
	db querier
}

// NewLinkRepository creates a repository backed by pgx.
func NewLinkRepository(pool *pgxpool.Pool) *LinkRepository {
	if pool == nil {
		panic("calendarsync: pgx pool required")
	}
	return &LinkRepository{db: pool}
}

// NewLinkRepositoryWithQuerier allows injecting a mocked pgx interface for tests.
func NewLinkRepositoryWithQuerier(db querier) *LinkRepository {
	return &LinkRepository{db: db}
}

const linkColumns = `id, professional_id, resource_type, resource_id, provider, event_id, created_at`

// GetByResource looks up the link for one internal commitment.
func (r *LinkRepository) GetByResource(ctx context.Context, professionalID uuid.UUID, resourceType ResourceType, resourceID uuid.UUID) (*Link, error) {
	query := `SELECT ` + linkColumns + ` FROM calendar_links
		WHERE professional_id = $1 AND resource_type = $2 AND resource_id = $3`
	link, err := scanLink(r.db.QueryRow(ctx, query, professionalID, string(resourceType), resourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("calendarsync: load link: %w", err)
	}
	return link, nil
}

// ListByProfessional returns every link for the professional under a provider.
func (r *LinkRepository) ListByProfessional(ctx context.Context, professionalID uuid.UUID, provider string) ([]Link, error) {
	query := `SELECT ` + linkColumns + ` FROM calendar_links
		WHERE professional_id = $1 AND provider = $2`
	rows, err := r.db.Query(ctx, query, professionalID, provider)
	if err != nil {
		return nil, fmt.Errorf("calendarsync: list links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("calendarsync: scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// Insert stores a new link. The unique constraint on (professional, resource)
// enforces at most one external identifier per internal commitment.
func (r *LinkRepository) Insert(ctx context.Context, link Link) (*Link, error) {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	query := `
		INSERT INTO calendar_links (id, professional_id, resource_type, resource_id, provider, event_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + linkColumns
	row := r.db.QueryRow(ctx, query, link.ID, link.ProfessionalID,
		string(link.ResourceType), link.ResourceID, link.Provider, link.EventID)
	inserted, err := scanLink(row)
	if err != nil {
		return nil, fmt.Errorf("calendarsync: insert link: %w", err)
	}
	return inserted, nil
}

// Delete removes one link.
func (r *LinkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM calendar_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("calendarsync: delete link: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func scanLink(row pgx.Row) (*Link, error) {
	var (
		link         Link
		resourceType string
	)
	err := row.Scan(&link.ID, &link.ProfessionalID, &resourceType, &link.ResourceID,
		&link.Provider, &link.EventID, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	link.ResourceType = ResourceType(resourceType)
	return &link, nil
}
