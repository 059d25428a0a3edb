package repositories

import (
	"context"

	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
)

// FeedbackRepository defines the interface for feedback persistence.
type FeedbackRepository interface {
	// Create stores the record. The repository assigns ID, CreatedAt and
	// Status and writes them back into feedback.
	Create(ctx context.Context, feedback *entities.FeedbackRecord) error

	// List returns one page of records ordered newest first, plus the number
	// of records matching the filter before pagination.
	List(ctx context.Context, filter FeedbackFilter) ([]*entities.FeedbackRecord, int, error)

	// EnsureSchema creates the backing table and indexes if missing.
	EnsureSchema(ctx context.Context) error
}

// FeedbackFilter defines filtering and pagination for listing feedback.
type FeedbackFilter struct {
	Rating *int // nil matches every rating
	Limit  int
	Offset int
}

// Matches reports whether a record satisfies the filter predicate.
func (f FeedbackFilter) Matches(record *entities.FeedbackRecord) bool {
	return f.Rating == nil || record.Rating == *f.Rating
}
