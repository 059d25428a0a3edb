package database

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	"github.com/zatekoja/feedbackinsights/internal/domain/repositories"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/feedbackinsights/pkg/errors"
)

// DegradingFeedbackRepository serves feedback from a primary store until the
// primary turns out to be unreachable, then switches to a fallback store for
// the rest of the process lifetime. The switch happens at most once and is
// never reversed.
//
// Ids stay strictly increasing across the switch: the highest id the primary
// has handed out is carried over to a fallback that implements idFloor.
type DegradingFeedbackRepository struct {
	primary  repositories.FeedbackRepository
	fallback repositories.FeedbackRepository
	degraded atomic.Bool
	maxID    atomic.Int64
}

// idFloor is implemented by fallback stores that can skip ids already used
// by the primary.
type idFloor interface {
	EnsureIDAbove(id int64)
}

// NewDegradingFeedbackRepository wraps primary with fallback. A nil primary
// starts the repository already degraded.
func NewDegradingFeedbackRepository(primary, fallback repositories.FeedbackRepository) *DegradingFeedbackRepository {
	r := &DegradingFeedbackRepository{
		primary:  primary,
		fallback: fallback,
	}
	if primary == nil {
		r.degraded.Store(true)
		log.Warn().Msg("feedback datastore not configured, using in-memory store")
	}
	return r
}

var _ repositories.FeedbackRepository = (*DegradingFeedbackRepository)(nil)

// Degraded reports whether the fallback store is in use.
func (r *DegradingFeedbackRepository) Degraded() bool {
	return r.degraded.Load()
}

// Create stores feedback in the active store.
func (r *DegradingFeedbackRepository) Create(ctx context.Context, feedback *entities.FeedbackRecord) error {
	if r.degraded.Load() {
		return r.createInFallback(ctx, feedback)
	}

	err := r.primary.Create(ctx, feedback)
	if err == nil {
		r.observeID(feedback.ID)
		return nil
	}
	if !shouldDegrade(err) {
		return err
	}

	r.degrade(ctx, "create", err)
	return r.createInFallback(ctx, feedback)
}

func (r *DegradingFeedbackRepository) createInFallback(ctx context.Context, feedback *entities.FeedbackRecord) error {
	if floor, ok := r.fallback.(idFloor); ok {
		floor.EnsureIDAbove(r.maxID.Load())
	}
	return r.fallback.Create(ctx, feedback)
}

// observeID records id as handed out by the primary.
func (r *DegradingFeedbackRepository) observeID(id int64) {
	for {
		current := r.maxID.Load()
		if id <= current || r.maxID.CompareAndSwap(current, id) {
			return
		}
	}
}

// List reads from the active store.
func (r *DegradingFeedbackRepository) List(ctx context.Context, filter repositories.FeedbackFilter) ([]*entities.FeedbackRecord, int, error) {
	if r.degraded.Load() {
		return r.fallback.List(ctx, filter)
	}

	records, total, err := r.primary.List(ctx, filter)
	if err == nil {
		for _, record := range records {
			r.observeID(record.ID)
		}
		return records, total, nil
	}
	if !shouldDegrade(err) {
		return nil, 0, err
	}

	r.degrade(ctx, "list", err)
	return r.fallback.List(ctx, filter)
}

// EnsureSchema runs against the active store and never triggers a switch;
// schema setup is an administrative step that should fail loudly.
func (r *DegradingFeedbackRepository) EnsureSchema(ctx context.Context) error {
	if r.degraded.Load() {
		return r.fallback.EnsureSchema(ctx)
	}
	return r.primary.EnsureSchema(ctx)
}

func (r *DegradingFeedbackRepository) degrade(ctx context.Context, operation string, cause error) {
	if !r.degraded.CompareAndSwap(false, true) {
		return
	}

	observability.LoggerFromContext(ctx).Warn().
		Err(cause).
		Str("operation", operation).
		Msg("feedback datastore unreachable, switching to in-memory store until restart")
	observability.RecordStoreDegraded(ctx, operation)
}

func shouldDegrade(err error) bool {
	return apperrors.IsType(err, apperrors.ErrorTypeUnavailable) || IsUnreachable(err)
}

