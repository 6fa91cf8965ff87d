package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func strPtr(s string) *string { return &s }

func int32Ptr(v int32) *int32 { return &v }

func TestRepositoryListByProfessional(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	pro := uuid.New()
	blockID := uuid.New()
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "professional_id", "title", "block_type", "start_date", "end_date",
		"start_time", "end_time", "day_of_week", "is_recurring", "is_external_event",
		"external_event_id", "external_source", "created_at", "updated_at",
	}).AddRow(
		blockID, pro, "lunch", "weekly_range", monday, (*time.Time)(nil),
		strPtr("12:00"), strPtr("13:00"), int32Ptr(1), true, false,
		(*string)(nil), (*string)(nil), now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM availability_blocks WHERE professional_id").
		WithArgs(pro).
		WillReturnRows(rows)

	repo := NewRepositoryWithQuerier(mock)
	blocks, err := repo.ListByProfessional(context.Background(), pro)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.Type != BlockWeeklyRange || b.StartTime != "12:00" || b.DayOfWeek != 1 || !b.Recurring {
		t.Fatalf("unexpected block %+v", b)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepositoryDeleteNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM availability_blocks").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewRepositoryWithQuerier(mock)
	if err := repo.Delete(context.Background(), id); err != ErrBlockNotFound {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestRepositoryUpdateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	b := manualBlock(uuid.New(), monday, "09:00", "10:00")
	mock.ExpectExec("UPDATE availability_blocks").
		WithArgs(b.ID, b.Title, string(b.Type), b.StartDate, b.EndDate,
			strPtr(b.StartTime), strPtr(b.EndTime), (*int32)(nil), b.Recurring).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRepositoryWithQuerier(mock)
	if err := repo.Update(context.Background(), b); err != ErrBlockNotFound {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}
