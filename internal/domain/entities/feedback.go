package entities

import "time"

// Rating bounds accepted for a feedback record.
const (
	MinRating = 1
	MaxRating = 5
)

// FeedbackStatus is the processing state of a feedback record.
type FeedbackStatus string

const (
	FeedbackStatusPending   FeedbackStatus = "pending"
	FeedbackStatusCompleted FeedbackStatus = "completed"
)

// FeedbackRecord is a customer's rating and review together with the
// generated summary, recommended action and reply.
type FeedbackRecord struct {
	ID                int64          `json:"id" db:"id"`
	Rating            int            `json:"rating" db:"rating"`
	Review            string         `json:"review" db:"review"`
	AISummary         string         `json:"ai_summary" db:"ai_summary"`
	RecommendedAction string         `json:"recommended_action" db:"recommended_action"`
	UserResponse      string         `json:"user_response" db:"user_response"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	Status            FeedbackStatus `json:"status" db:"status"`
}

// IsValidRating reports whether rating lies within the accepted 1..5 range.
func IsValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// IsPositive reports whether the rating belongs to the positive tone bucket.
func IsPositive(rating int) bool {
	return rating >= 4
}
