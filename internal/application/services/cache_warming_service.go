package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	"github.com/zatekoja/feedbackinsights/internal/domain/repositories"
)

// CacheWarmingService pre-loads the listing pages the admin dashboard opens
// with: the first page of all feedback and the first page per rating.
type CacheWarmingService struct {
	repo     repositories.FeedbackRepository
	pageSize int

	wg sync.WaitGroup
}

// NewCacheWarmingService creates a new cache warming service. repo should be
// the cached repository so that reads populate the cache.
func NewCacheWarmingService(repo repositories.FeedbackRepository, pageSize int) *CacheWarmingService {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &CacheWarmingService{repo: repo, pageSize: pageSize}
}

// WarmCache loads every dashboard landing page once and reports how many
// pages were loaded.
func (s *CacheWarmingService) WarmCache(ctx context.Context) int {
	filters := []repositories.FeedbackFilter{{Limit: s.pageSize}}
	for rating := entities.MinRating; rating <= entities.MaxRating; rating++ {
		rating := rating
		filters = append(filters, repositories.FeedbackFilter{Rating: &rating, Limit: s.pageSize})
	}

	warmed := 0
	for _, filter := range filters {
		if ctx.Err() != nil {
			break
		}
		if _, _, err := s.repo.List(ctx, filter); err != nil {
			log.Warn().Err(err).Msg("Failed to warm feedback listing page")
			continue
		}
		warmed++
	}

	log.Debug().Int("pages", warmed).Msg("Feedback listing cache warmed")
	return warmed
}

// StartPeriodicWarming warms the cache now and then every interval until ctx
// is cancelled.
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	s.WarmCache(ctx)

	ticker := time.NewTicker(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Debug().Msg("Stopping cache warming service")
				return
			case <-ticker.C:
				s.WarmCache(ctx)
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("Started periodic cache warming")
}

// Wait blocks until the periodic warming goroutine has exited.
func (s *CacheWarmingService) Wait() {
	s.wg.Wait()
}
