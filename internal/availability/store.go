package availability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/serenbook/platform/pkg/logging"
)

var storeTracer = otel.Tracer("serenbook.internal.availability")

// BlockRepository is the persistence surface the store needs.
type BlockRepository interface {
	ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Block, error)
	ListExternal(ctx context.Context, professionalID uuid.UUID, source string) ([]Block, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Block, error)
	Insert(ctx context.Context, b Block) (*Block, error)
	Update(ctx context.Context, b Block) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type cacheEntry struct {
	blocks    []Block
	fetchedAt time.Time
}

// Store serves a professional's block set through a short-lived cache.
// Concurrent loads for the same professional are coalesced into one fetch, and
// a failed refresh falls back to the last good value so a storage blip never
// opens slots that are actually blocked.
type Store struct {
	repo   BlockRepository
	ttl    time.Duration
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[uuid.UUID]cacheEntry
	group singleflight.Group

	// now is monotonic via time.Since on the stored instant; overridable in tests.
	now func() time.Time
}

// NewStore creates a block store with the given cache TTL.
func NewStore(repo BlockRepository, ttl time.Duration, logger *logging.Logger) *Store {
	if repo == nil {
		panic("availability: repository required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[uuid.UUID]cacheEntry),
		now:    time.Now,
	}
}

// Load returns the professional's blocks, from cache when fresh enough.
// forceRefresh bypasses the freshness check but still coalesces with any
// in-flight fetch for the same professional.
func (s *Store) Load(ctx context.Context, professionalID uuid.UUID, forceRefresh bool) ([]Block, error) {
	ctx, span := storeTracer.Start(ctx, "availability.load")
	defer span.End()
	span.SetAttributes(attribute.String("serenbook.professional_id", professionalID.String()))

	if !forceRefresh {
		if blocks, ok := s.cached(professionalID); ok {
			span.SetAttributes(attribute.Bool("serenbook.cache_hit", true))
			return blocks, nil
		}
	}

	v, err, _ := s.group.Do(professionalID.String(), func() (any, error) {
		blocks, err := s.repo.ListByProfessional(ctx, professionalID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[professionalID] = cacheEntry{blocks: blocks, fetchedAt: s.now()}
		s.mu.Unlock()
		return blocks, nil
	})
	if err != nil {
		// Serve the last good value rather than an empty set. Stale blocks are
		// safer than erroneously free slots.
		s.mu.RLock()
		entry, ok := s.cache[professionalID]
		s.mu.RUnlock()
		if ok {
			s.logger.Warn("block fetch failed, serving stale cache",
				"professional_id", professionalID, "error", err, "age", s.now().Sub(entry.fetchedAt))
			span.RecordError(err)
			return entry.blocks, nil
		}
		span.RecordError(err)
		return nil, err
	}
	return v.([]Block), nil
}

// Invalidate drops the cached block set for the professional.
func (s *Store) Invalidate(professionalID uuid.UUID) {
	s.mu.Lock()
	delete(s.cache, professionalID)
	s.mu.Unlock()
}

// Validate checks a candidate block: field-level problems first, then pairwise
// overlap against the professional's current block set. excludeID skips one
// existing block, for edit flows.
func (s *Store) Validate(ctx context.Context, professionalID uuid.UUID, candidate Block, excludeID uuid.UUID) (ValidationResult, error) {
	if fieldErrs := validateFields(candidate); len(fieldErrs) > 0 {
		return ValidationResult{Valid: false, Errors: fieldErrs}, nil
	}
	existing, err := s.Load(ctx, professionalID, false)
	if err != nil {
		return ValidationResult{}, err
	}
	overlapping := conflictingBlocks(candidate, existing, excludeID)
	return ValidationResult{
		Valid:       len(overlapping) == 0,
		Overlapping: overlapping,
	}, nil
}

// Create validates and persists a new block, invalidating the cache on success.
func (s *Store) Create(ctx context.Context, b Block) (*Block, error) {
	result, err := s.Validate(ctx, b.ProfessionalID, b, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, result.Err()
	}
	created, err := s.repo.Insert(ctx, b)
	if err != nil {
		return nil, err
	}
	s.Invalidate(b.ProfessionalID)
	return created, nil
}

// Update validates and rewrites an existing block, excluding the block itself
// from the conflict set.
func (s *Store) Update(ctx context.Context, b Block) error {
	result, err := s.Validate(ctx, b.ProfessionalID, b, b.ID)
	if err != nil {
		return err
	}
	if !result.Valid {
		return result.Err()
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return err
	}
	s.Invalidate(b.ProfessionalID)
	return nil
}

// Delete removes a block and invalidates the owner's cache.
func (s *Store) Delete(ctx context.Context, professionalID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(professionalID)
	return nil
}

// ListExternal returns blocks imported from an external calendar source.
// Reads go straight to storage so sync runs always see the current link set.
func (s *Store) ListExternal(ctx context.Context, professionalID uuid.UUID, source string) ([]Block, error) {
	return s.repo.ListExternal(ctx, professionalID, source)
}

func (s *Store) cached(professionalID uuid.UUID) ([]Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[professionalID]
	if !ok || s.now().Sub(entry.fetchedAt) > s.ttl {
		return nil, false
	}
	return entry.blocks, true
}
