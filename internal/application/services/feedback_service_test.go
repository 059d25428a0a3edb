package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/feedbackinsights/internal/application/services"
	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	"github.com/zatekoja/feedbackinsights/internal/domain/providers"
	"github.com/zatekoja/feedbackinsights/internal/domain/repositories"
	apperrors "github.com/zatekoja/feedbackinsights/pkg/errors"
)

// Mocks

type MockFeedbackRepository struct {
	mock.Mock
}

func (m *MockFeedbackRepository) Create(ctx context.Context, feedback *entities.FeedbackRecord) error {
	args := m.Called(ctx, feedback)
	return args.Error(0)
}

func (m *MockFeedbackRepository) List(ctx context.Context, filter repositories.FeedbackFilter) ([]*entities.FeedbackRecord, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.FeedbackRecord), args.Int(1), args.Error(2)
}

func (m *MockFeedbackRepository) EnsureSchema(ctx context.Context) error {
	return nil
}

func intPtr(v int) *int { return &v }

// Tests

func TestFeedbackService_Submit(t *testing.T) {
	t.Run("stores generated insights", func(t *testing.T) {
		repo := new(MockFeedbackRepository)
		service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{}))

		repo.On("Create", mock.Anything, mock.MatchedBy(func(f *entities.FeedbackRecord) bool {
			return f.Rating == 5 && f.Review == "Great!"
		})).Run(func(args mock.Arguments) {
			f := args.Get(1).(*entities.FeedbackRecord)
			f.ID = 7
			f.Status = entities.FeedbackStatusCompleted
			f.CreatedAt = time.Now()
		}).Return(nil)

		record, err := service.Submit(context.Background(), services.SubmitInput{Rating: intPtr(5), Review: "Great!"})
		require.NoError(t, err)

		assert.Equal(t, int64(7), record.ID)
		assert.Equal(t, `Mock summary: "Great!"`, record.AISummary)
		assert.True(t, strings.HasPrefix(record.RecommendedAction, "Mock recommended action for 5/5 rating"))
		assert.True(t, strings.HasPrefix(record.UserResponse, "Mock positive response"))
		repo.AssertExpectations(t)
	})

	t.Run("blank review keeps placeholders", func(t *testing.T) {
		repo := new(MockFeedbackRepository)
		service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{}))
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		record, err := service.Submit(context.Background(), services.SubmitInput{Rating: intPtr(3)})
		require.NoError(t, err)

		assert.Equal(t, services.NoReviewSummary, record.AISummary)
		assert.Equal(t, services.NoReviewAction, record.RecommendedAction)
		assert.Equal(t, services.NoReviewReply, record.UserResponse)
	})

	t.Run("rejects invalid ratings before doing work", func(t *testing.T) {
		repo := new(MockFeedbackRepository)
		provider := new(MockCompletionProvider)
		service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{Provider: provider}))

		for _, rating := range []*int{nil, intPtr(0), intPtr(6), intPtr(-1)} {
			_, err := service.Submit(context.Background(), services.SubmitInput{Rating: rating, Review: "x"})
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
			assert.Equal(t, services.ErrInvalidRating, apperrors.Message(err))
		}

		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		repo := new(MockFeedbackRepository)
		service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{}))
		storeErr := errors.New("disk full")
		repo.On("Create", mock.Anything, mock.Anything).Return(storeErr)

		_, err := service.Submit(context.Background(), services.SubmitInput{Rating: intPtr(2), Review: "Meh"})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("action receives the computed summary", func(t *testing.T) {
		repo := new(MockFeedbackRepository)
		provider := new(MockCompletionProvider)
		service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{Provider: provider}))

		provider.On("Complete", mock.Anything, mock.MatchedBy(func(req providers.CompletionRequest) bool {
			return strings.HasPrefix(req.UserPrompt, "Summarize")
		})).Return("Late parcel.", nil)
		provider.On("Complete", mock.Anything, mock.MatchedBy(func(req providers.CompletionRequest) bool {
			return strings.HasPrefix(req.UserPrompt, "Rating:")
		})).Return("Refund shipping.", nil)
		provider.On("Complete", mock.Anything, mock.MatchedBy(func(req providers.CompletionRequest) bool {
			return strings.HasPrefix(req.UserPrompt, "Customer gave")
		})).Return("Sorry about that.", nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		record, err := service.Submit(context.Background(), services.SubmitInput{Rating: intPtr(2), Review: "Parcel was late"})
		require.NoError(t, err)

		assert.Equal(t, "Late parcel.", record.AISummary)
		assert.Equal(t, "Refund shipping.", record.RecommendedAction)
		assert.Equal(t, "Sorry about that.", record.UserResponse)
		provider.AssertCalled(t, "Complete", mock.Anything, mock.MatchedBy(func(req providers.CompletionRequest) bool {
			return strings.Contains(req.UserPrompt, "Summary: Late parcel.")
		}))
	})
}

func TestFeedbackService_Submit_AbandonedRequestIsNotStored(t *testing.T) {
	repo := new(MockFeedbackRepository)
	service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record, err := service.Submit(ctx, services.SubmitInput{Rating: intPtr(4), Review: "Fine"})
	require.Error(t, err)
	assert.Nil(t, record)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.ErrorIs(t, err, context.Canceled)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFeedbackService_Submit_ReplyRunsAlongsideSummary(t *testing.T) {
	repo := new(MockFeedbackRepository)
	provider := new(MockCompletionProvider)
	service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{Provider: provider}))

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	provider.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			time.Sleep(50 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
		}).
		Return("ok", nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := service.Submit(context.Background(), services.SubmitInput{Rating: intPtr(4), Review: "Nice"})
	require.NoError(t, err)

	assert.Equal(t, 2, maxInFlight)
	provider.AssertNumberOfCalls(t, "Complete", 3)
}

func TestFeedbackService_List(t *testing.T) {
	t.Run("passes the filter through", func(t *testing.T) {
		repo := new(MockFeedbackRepository)
		service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{}))
		page := []*entities.FeedbackRecord{{ID: 2, Rating: 3}}

		repo.On("List", mock.Anything, repositories.FeedbackFilter{Rating: intPtr(3), Limit: 10, Offset: 20}).
			Return(page, 21, nil)

		records, total, err := service.List(context.Background(), services.ListInput{Rating: intPtr(3), Limit: 10, Offset: 20})
		require.NoError(t, err)
		assert.Equal(t, 21, total)
		assert.Equal(t, page, records)
	})

	t.Run("caps the page size", func(t *testing.T) {
		repo := new(MockFeedbackRepository)
		service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{}))

		repo.On("List", mock.Anything, repositories.FeedbackFilter{Limit: services.MaxListLimit}).
			Return([]*entities.FeedbackRecord{}, 0, nil)

		_, _, err := service.List(context.Background(), services.ListInput{Limit: 10000})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("rejects malformed filters", func(t *testing.T) {
		repo := new(MockFeedbackRepository)
		service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{}))

		inputs := []services.ListInput{
			{Rating: intPtr(9), Limit: 10},
			{Limit: -1},
			{Limit: 10, Offset: -5},
		}
		for _, input := range inputs {
			_, _, err := service.List(context.Background(), input)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		}
		repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		repo := new(MockFeedbackRepository)
		service := services.NewFeedbackService(repo, services.NewInsightService(services.InsightConfig{}))
		repo.On("List", mock.Anything, mock.Anything).Return(nil, 0, errors.New("timeout"))

		_, _, err := service.List(context.Background(), services.ListInput{Limit: 10})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})
}
