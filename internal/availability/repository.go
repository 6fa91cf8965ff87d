package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrBlockNotFound is returned when a block id does not exist.
var ErrBlockNotFound = errors.New("availability: block not found")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists availability blocks.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by pgx.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting a mocked pgx interface for tests.
func NewRepositoryWithQuerier(db querier) *Repository {
	return &Repository{db: db}
}

const blockColumns = `id, professional_id, title, block_type, start_date, end_date,
	start_time, end_time, day_of_week, is_recurring, is_external_event,
	external_event_id, external_source, created_at, updated_at`

// ListByProfessional returns every block owned by the professional.
func (r *Repository) ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Block, error) {
	query := `SELECT ` + blockColumns + ` FROM availability_blocks WHERE professional_id = $1 ORDER BY start_date, start_time`
	rows, err := r.db.Query(ctx, query, professionalID)
	if err != nil {
		return nil, fmt.Errorf("availability: list blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// ListExternal returns imported external-event blocks for the professional,
// optionally filtered by source tag.
func (r *Repository) ListExternal(ctx context.Context, professionalID uuid.UUID, source string) ([]Block, error) {
	query := `SELECT ` + blockColumns + ` FROM availability_blocks
		WHERE professional_id = $1 AND is_external_event AND ($2 = '' OR external_source = $2)`
	rows, err := r.db.Query(ctx, query, professionalID, source)
	if err != nil {
		return nil, fmt.Errorf("availability: list external blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// GetByID fetches one block.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Block, error) {
	query := `SELECT ` + blockColumns + ` FROM availability_blocks WHERE id = $1`
	b, err := scanBlock(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("availability: load block: %w", err)
	}
	return b, nil
}

// Insert persists a new block, assigning an id when absent.
func (r *Repository) Insert(ctx context.Context, b Block) (*Block, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	query := `
		INSERT INTO availability_blocks
			(id, professional_id, title, block_type, start_date, end_date,
			 start_time, end_time, day_of_week, is_recurring, is_external_event,
			 external_event_id, external_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + blockColumns
	row := r.db.QueryRow(ctx, query,
		b.ID, b.ProfessionalID, b.Title, string(b.Type), b.StartDate, b.EndDate,
		nullString(b.StartTime), nullString(b.EndTime), nullDay(b.DayOfWeek),
		b.Recurring, b.ExternalEvent, nullString(b.ExternalEventID), nullString(b.ExternalSource))
	inserted, err := scanBlock(row)
	if err != nil {
		return nil, fmt.Errorf("availability: insert block: %w", err)
	}
	return inserted, nil
}

// Update rewrites the mutable fields of an existing block.
func (r *Repository) Update(ctx context.Context, b Block) error {
	query := `
		UPDATE availability_blocks
		SET title = $2, block_type = $3, start_date = $4, end_date = $5,
			start_time = $6, end_time = $7, day_of_week = $8, is_recurring = $9,
			updated_at = now()
		WHERE id = $1`
	ct, err := r.db.Exec(ctx, query,
		b.ID, b.Title, string(b.Type), b.StartDate, b.EndDate,
		nullString(b.StartTime), nullString(b.EndTime), nullDay(b.DayOfWeek), b.Recurring)
	if err != nil {
		return fmt.Errorf("availability: update block: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// Delete removes a block.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM availability_blocks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("availability: delete block: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func scanBlocks(rows pgx.Rows) ([]Block, error) {
	var blocks []Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("availability: scan block: %w", err)
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

func scanBlock(row pgx.Row) (*Block, error) {
	var (
		b               Block
		blockType       string
		startTime       *string
		endTime         *string
		dayOfWeek       *int32
		externalEventID *string
		externalSource  *string
	)
	err := row.Scan(&b.ID, &b.ProfessionalID, &b.Title, &blockType, &b.StartDate,
		&b.EndDate, &startTime, &endTime, &dayOfWeek, &b.Recurring,
		&b.ExternalEvent, &externalEventID, &externalSource, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Type = BlockType(blockType)
	b.StartDate = b.StartDate.UTC()
	if b.EndDate != nil {
		d := b.EndDate.UTC()
		b.EndDate = &d
	}
	if startTime != nil {
		b.StartTime = *startTime
	}
	if endTime != nil {
		b.EndTime = *endTime
	}
	if dayOfWeek != nil {
		b.DayOfWeek = int(*dayOfWeek)
	}
	if externalEventID != nil {
		b.ExternalEventID = *externalEventID
	}
	if externalSource != nil {
		b.ExternalSource = *externalSource
	}
	return &b, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullDay(d int) *int32 {
	if d < 1 || d > 7 {
		return nil
	}
	v := int32(d)
	return &v
}
