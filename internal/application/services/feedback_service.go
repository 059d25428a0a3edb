package services

import (
	"context"

	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	"github.com/zatekoja/feedbackinsights/internal/domain/repositories"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/feedbackinsights/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidRating is the message returned for a missing or out-of-range rating.
const ErrInvalidRating = "Rating must be between 1 and 5"

// MaxListLimit caps the page size of a listing.
const MaxListLimit = 500

// SubmitInput is a raw feedback submission. A nil Rating is invalid.
type SubmitInput struct {
	Rating *int
	Review string
}

// ListInput selects a page of feedback. A nil Rating means all ratings.
type ListInput struct {
	Rating *int
	Limit  int
	Offset int
}

// FeedbackService handles feedback submissions and listings.
type FeedbackService struct {
	repo     repositories.FeedbackRepository
	insights *InsightService
}

// NewFeedbackService creates a new feedback service.
func NewFeedbackService(repo repositories.FeedbackRepository, insights *InsightService) *FeedbackService {
	return &FeedbackService{repo: repo, insights: insights}
}

// Submit validates a submission, generates its insights and stores it.
func (s *FeedbackService) Submit(ctx context.Context, input SubmitInput) (*entities.FeedbackRecord, error) {
	if input.Rating == nil || !entities.IsValidRating(*input.Rating) {
		return nil, apperrors.NewValidationError(ErrInvalidRating)
	}
	rating := *input.Rating

	ctx, span := observability.StartSpan(ctx, "FeedbackService.Submit")
	defer span.End()

	var summary, action, reply string

	// Insight generation never fails; the group only reports a request that
	// was abandoned while insights were being generated.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary = s.insights.Summarize(gctx, input.Review)
		action = s.insights.RecommendAction(gctx, rating, input.Review, summary)
		return gctx.Err()
	})
	g.Go(func() error {
		reply = s.insights.ComposeUserReply(gctx, rating, input.Review)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewInternalError("feedback submission abandoned", err)
	}

	record := &entities.FeedbackRecord{
		Rating:            rating,
		Review:            input.Review,
		AISummary:         summary,
		RecommendedAction: action,
		UserResponse:      reply,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewInternalError("failed to store feedback", err)
	}

	observability.RecordSubmission(ctx, rating)
	observability.LoggerFromContext(ctx).Info().
		Int64("feedback_id", record.ID).
		Int("rating", rating).
		Msg("feedback submitted")

	return record, nil
}

// List returns a page of feedback, newest first, and the total number of
// records that match the filter.
func (s *FeedbackService) List(ctx context.Context, input ListInput) ([]*entities.FeedbackRecord, int, error) {
	if input.Rating != nil && !entities.IsValidRating(*input.Rating) {
		return nil, 0, apperrors.NewValidationError(ErrInvalidRating)
	}
	if input.Limit < 0 {
		return nil, 0, apperrors.NewValidationError("limit must be a non-negative integer")
	}
	if input.Offset < 0 {
		return nil, 0, apperrors.NewValidationError("offset must be a non-negative integer")
	}

	limit := input.Limit
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	ctx, span := observability.StartSpan(ctx, "FeedbackService.List")
	defer span.End()

	records, total, err := s.repo.List(ctx, repositories.FeedbackFilter{
		Rating: input.Rating,
		Limit:  limit,
		Offset: input.Offset,
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, 0, apperrors.NewInternalError("failed to list feedback", err)
	}

	return records, total, nil
}
