package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLockSerializesSameProfessional(t *testing.T) {
	client := testClient(t)
	locker := NewProfessionalLocker(client, time.Minute)
	pro := uuid.New()

	err := locker.WithProfessionalLock(context.Background(), pro, func(ctx context.Context) error {
		inner := locker.WithProfessionalLock(ctx, pro, func(ctx context.Context) error {
			t.Fatal("second lock holder should not run")
			return nil
		})
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Fatalf("expected ErrLockNotAcquired, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLockAllowsDifferentProfessionals(t *testing.T) {
	client := testClient(t)
	locker := NewProfessionalLocker(client, time.Minute)

	err := locker.WithProfessionalLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		return locker.WithProfessionalLock(ctx, uuid.New(), func(ctx context.Context) error {
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLockReleasedAfterCallback(t *testing.T) {
	client := testClient(t)
	locker := NewProfessionalLocker(client, time.Minute)
	pro := uuid.New()

	if err := locker.WithProfessionalLock(context.Background(), pro, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := locker.WithProfessionalLock(context.Background(), pro, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("lock should be reacquirable after release, got %v", err)
	}
}

func TestLockPropagatesCallbackError(t *testing.T) {
	client := testClient(t)
	locker := NewProfessionalLocker(client, time.Minute)

	sentinel := errors.New("boom")
	err := locker.WithProfessionalLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error, got %v", err)
	}
}
