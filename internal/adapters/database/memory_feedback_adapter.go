package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	"github.com/zatekoja/feedbackinsights/internal/domain/repositories"
	apperrors "github.com/zatekoja/feedbackinsights/pkg/errors"
)

// MemoryFeedbackAdapter keeps feedback in process memory. It stands in for
// Postgres when the datastore cannot be reached.
type MemoryFeedbackAdapter struct {
	mu      sync.RWMutex
	records []*entities.FeedbackRecord
	lastID  int64
	now     func() time.Time
}

// NewMemoryFeedbackAdapter creates an in-memory store holding copies of seed.
func NewMemoryFeedbackAdapter(seed []*entities.FeedbackRecord) *MemoryFeedbackAdapter {
	a := &MemoryFeedbackAdapter{now: time.Now}
	for _, record := range seed {
		if record == nil {
			continue
		}
		clone := *record
		a.records = append(a.records, &clone)
		if clone.ID > a.lastID {
			a.lastID = clone.ID
		}
	}
	return a
}

// SampleFeedback returns the example records the in-memory store starts
// with, timestamped relative to now.
func SampleFeedback(now time.Time) []*entities.FeedbackRecord {
	return []*entities.FeedbackRecord{
		{
			ID:                1,
			Rating:            5,
			Review:            "Great service! Very responsive and helpful.",
			AISummary:         "Customer expressed high satisfaction with service responsiveness.",
			RecommendedAction: "Share positive feedback with team and continue excellent service.",
			UserResponse:      "Thank you for the wonderful feedback! We're glad you're satisfied with our service.",
			CreatedAt:         now.Add(-24 * time.Hour).UTC(),
			Status:            entities.FeedbackStatusCompleted,
		},
		{
			ID:                2,
			Rating:            3,
			Review:            "Service was okay but could be improved.",
			AISummary:         "Customer found service adequate but sees room for improvement.",
			RecommendedAction: "Follow up to understand specific areas for improvement.",
			UserResponse:      "Thank you for your feedback. We appreciate your input and are always looking to improve.",
			CreatedAt:         now.Add(-12 * time.Hour).UTC(),
			Status:            entities.FeedbackStatusPending,
		},
	}
}

var _ repositories.FeedbackRepository = (*MemoryFeedbackAdapter)(nil)

// Create stores a copy of feedback under the next id.
func (a *MemoryFeedbackAdapter) Create(_ context.Context, feedback *entities.FeedbackRecord) error {
	if feedback == nil {
		return apperrors.NewInternalError("feedback is nil", fmt.Errorf("feedback is nil"))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastID++
	feedback.ID = a.lastID
	feedback.CreatedAt = a.now().UTC()
	feedback.Status = entities.FeedbackStatusCompleted

	clone := *feedback
	a.records = append(a.records, &clone)
	return nil
}

// EnsureIDAbove makes the next Create assign an id greater than id.
func (a *MemoryFeedbackAdapter) EnsureIDAbove(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id > a.lastID {
		a.lastID = id
	}
}

// List filters, sorts newest first and paginates a snapshot of the records.
func (a *MemoryFeedbackAdapter) List(_ context.Context, filter repositories.FeedbackFilter) ([]*entities.FeedbackRecord, int, error) {
	a.mu.RLock()
	matched := make([]*entities.FeedbackRecord, 0, len(a.records))
	for _, record := range a.records {
		if filter.Matches(record) {
			clone := *record
			matched = append(matched, &clone)
		}
	}
	a.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if filter.Limit >= 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	return matched[start:end], total, nil
}

// EnsureSchema is a no-op; there is no schema to create in memory.
func (a *MemoryFeedbackAdapter) EnsureSchema(context.Context) error {
	return nil
}
