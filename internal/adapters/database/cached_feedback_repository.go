package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	"github.com/zatekoja/feedbackinsights/internal/domain/providers"
	"github.com/zatekoja/feedbackinsights/internal/domain/repositories"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/observability"
)

// feedbackListGenerationKey holds a token that changes on every write; list
// entries are keyed by it so a new submission invalidates every cached page.
const feedbackListGenerationKey = "feedback:list:generation"

// CachedFeedbackRepository wraps a FeedbackRepository with a read-through
// cache for List. Cache failures are logged and bypassed.
//
// Pages are namespaced by the active store. Once the wrapped store reports
// itself degraded, pages go under a key private to this instance, so pages
// read from Postgres are never mixed with in-memory pages and an in-memory
// page never reaches other replicas sharing the cache.
type CachedFeedbackRepository struct {
	repo     repositories.FeedbackRepository
	cache    providers.CacheProvider
	ttl      time.Duration
	instance string
}

// degradable is implemented by stores that can fall back to process memory.
type degradable interface {
	Degraded() bool
}

// NewCachedFeedbackRepository creates a cached feedback repository.
func NewCachedFeedbackRepository(repo repositories.FeedbackRepository, cache providers.CacheProvider, ttl time.Duration) *CachedFeedbackRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedFeedbackRepository{
		repo:     repo,
		cache:    cache,
		ttl:      ttl,
		instance: uuid.NewString(),
	}
}

var _ repositories.FeedbackRepository = (*CachedFeedbackRepository)(nil)

type cachedFeedbackPage struct {
	Records []*entities.FeedbackRecord `json:"records"`
	Total   int                        `json:"total"`
}

// Create stores feedback and invalidates cached pages.
func (c *CachedFeedbackRepository) Create(ctx context.Context, feedback *entities.FeedbackRecord) error {
	if err := c.repo.Create(ctx, feedback); err != nil {
		return err
	}

	if err := c.cache.Set(ctx, feedbackListGenerationKey, []byte(uuid.NewString()), 0); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to invalidate feedback list cache")
	}
	return nil
}

// List serves a cached page when one exists for the current generation.
func (c *CachedFeedbackRepository) List(ctx context.Context, filter repositories.FeedbackFilter) ([]*entities.FeedbackRecord, int, error) {
	generation, ok := c.generation(ctx)
	if !ok {
		return c.repo.List(ctx, filter)
	}

	key := feedbackListCacheKey(generation, c.storeMode(), filter)
	logger := observability.LoggerFromContext(ctx)

	if data, err := c.cache.Get(ctx, key); err == nil {
		var page cachedFeedbackPage
		if err := json.Unmarshal(data, &page); err == nil {
			logger.Debug().Str("key", key).Msg("feedback list cache hit")
			return page.Records, page.Total, nil
		}
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		logger.Warn().Err(err).Msg("feedback list cache read failed")
	}

	records, total, err := c.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	// The read itself may have switched the store.
	key = feedbackListCacheKey(generation, c.storeMode(), filter)
	data, err := json.Marshal(cachedFeedbackPage{Records: records, Total: total})
	if err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			logger.Warn().Err(err).Msg("feedback list cache write failed")
		}
	}

	return records, total, nil
}

// EnsureSchema delegates to the wrapped repository.
func (c *CachedFeedbackRepository) EnsureSchema(ctx context.Context) error {
	return c.repo.EnsureSchema(ctx)
}

// generation returns the current list generation, creating one if absent.
// ok is false when the cache cannot be used.
func (c *CachedFeedbackRepository) generation(ctx context.Context) (string, bool) {
	data, err := c.cache.Get(ctx, feedbackListGenerationKey)
	if err == nil {
		return string(data), true
	}
	if !errors.Is(err, providers.ErrCacheMiss) {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("feedback list cache unavailable")
		return "", false
	}

	generation := uuid.NewString()
	if err := c.cache.Set(ctx, feedbackListGenerationKey, []byte(generation), 0); err != nil {
		return "", false
	}
	return generation, true
}

// storeMode names the namespace for the store currently serving reads.
func (c *CachedFeedbackRepository) storeMode() string {
	if d, ok := c.repo.(degradable); ok && d.Degraded() {
		return "memory-" + c.instance
	}
	return "primary"
}

func feedbackListCacheKey(generation, mode string, filter repositories.FeedbackFilter) string {
	rating := "all"
	if filter.Rating != nil {
		rating = strconv.Itoa(*filter.Rating)
	}
	return fmt.Sprintf("feedback:list:%s:%s:%s:%d:%d", generation, mode, rating, filter.Limit, filter.Offset)
}
