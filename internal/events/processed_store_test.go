package events

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func TestAlreadyProcessedFalseOnNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT 1 FROM processed_events").
		WithArgs("stripe", "evt_1").
		WillReturnError(pgx.ErrNoRows)

	store := NewProcessedStoreWithExec(mock)
	seen, err := store.AlreadyProcessed(context.Background(), "stripe", "evt_1")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("unseen event reported as processed")
	}
}

func TestAlreadyProcessedTrue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT 1 FROM processed_events").
		WithArgs("stripe", "evt_1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	store := NewProcessedStoreWithExec(mock)
	seen, err := store.AlreadyProcessed(context.Background(), "stripe", "evt_1")
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("processed event not reported")
	}
}

func TestMarkProcessedConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("stripe", "evt_1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	store := NewProcessedStoreWithExec(mock)
	inserted, err := store.MarkProcessed(context.Background(), "stripe", "evt_1")
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("duplicate event reported as newly inserted")
	}
}
