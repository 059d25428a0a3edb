package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/feedbackinsights/internal/api/handlers"
	"github.com/zatekoja/feedbackinsights/internal/application/services"
	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	apperrors "github.com/zatekoja/feedbackinsights/pkg/errors"
)

type stubFeedbackService struct {
	submitted []services.SubmitInput
	listed    []services.ListInput
	records   []*entities.FeedbackRecord
	total     int
	err       error
}

func (s *stubFeedbackService) Submit(ctx context.Context, input services.SubmitInput) (*entities.FeedbackRecord, error) {
	s.submitted = append(s.submitted, input)
	if s.err != nil {
		return nil, s.err
	}
	if input.Rating == nil || !entities.IsValidRating(*input.Rating) {
		return nil, apperrors.NewValidationError(services.ErrInvalidRating)
	}
	return &entities.FeedbackRecord{
		ID:                11,
		Rating:            *input.Rating,
		Review:            input.Review,
		AISummary:         "summary",
		RecommendedAction: "action",
		UserResponse:      "reply",
		CreatedAt:         time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
		Status:            entities.FeedbackStatusCompleted,
	}, nil
}

func (s *stubFeedbackService) List(ctx context.Context, input services.ListInput) ([]*entities.FeedbackRecord, int, error) {
	s.listed = append(s.listed, input)
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.records, s.total, nil
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestFeedbackHandler_Submissions_Created(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(`{"rating":4,"review":"Nice staff"}`))
	w := httptest.NewRecorder()
	handler.Submissions(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(11), data["id"])
	assert.Equal(t, "summary", data["aiSummary"])
	assert.Equal(t, "action", data["recommendedAction"])
	assert.Equal(t, "reply", data["userResponse"])
	assert.Equal(t, "2026-10-18T10:00:00Z", data["createdAt"])
	assert.Equal(t, "completed", data["status"])

	require.Len(t, service.submitted, 1)
	assert.Equal(t, "Nice staff", service.submitted[0].Review)
}

func TestFeedbackHandler_Submissions_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "out of range", body: `{"rating":7}`, want: services.ErrInvalidRating},
		{name: "missing rating", body: `{"review":"hi"}`, want: services.ErrInvalidRating},
		{name: "string rating", body: `{"rating":"5"}`, want: services.ErrInvalidRating},
		{name: "fractional rating", body: `{"rating":4.5}`, want: services.ErrInvalidRating},
		{name: "not json", body: `rating=5`, want: services.ErrInvalidRating},
		{name: "huge rating", body: `{"rating":1e300}`, want: services.ErrInvalidRating},
		{name: "numeric review", body: `{"rating":5,"review":3}`, want: "Review must be a string"},
		{name: "object review", body: `{"rating":4,"review":{"text":"hi"}}`, want: "Review must be a string"},
		{name: "bad rating wins over bad review", body: `{"rating":"x","review":3}`, want: services.ErrInvalidRating},
		{name: "review too long", body: `{"rating":5,"review":"` + strings.Repeat("a", 2001) + `"}`, want: "Review must be 2000 characters or fewer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewFeedbackHandler(&stubFeedbackService{})
			req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.Submissions(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestFeedbackHandler_Submissions_WholeNumberRatings(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		rating int
		review string
	}{
		{name: "integer", body: `{"rating":5,"review":"ok"}`, rating: 5, review: "ok"},
		{name: "float with zero fraction", body: `{"rating":5.0,"review":"ok"}`, rating: 5, review: "ok"},
		{name: "exponent form", body: `{"rating":3e0}`, rating: 3},
		{name: "null review", body: `{"rating":1,"review":null}`, rating: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &stubFeedbackService{}
			handler := handlers.NewFeedbackHandler(service)
			req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.Submissions(w, req)

			assert.Equal(t, http.StatusCreated, w.Code)
			require.Len(t, service.submitted, 1)
			require.NotNil(t, service.submitted[0].Rating)
			assert.Equal(t, tt.rating, *service.submitted[0].Rating)
			assert.Equal(t, tt.review, service.submitted[0].Review)
		})
	}
}

func TestFeedbackHandler_Submissions_InternalError(t *testing.T) {
	service := &stubFeedbackService{err: apperrors.NewInternalError("failed to store feedback", errors.New("connection reset"))}
	handler := handlers.NewFeedbackHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(`{"rating":2}`))
	w := httptest.NewRecorder()
	handler.Submissions(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to submit feedback", body["error"])
	assert.Contains(t, body["details"], "connection reset")
}

func TestFeedbackHandler_MethodHandling(t *testing.T) {
	handler := handlers.NewFeedbackHandler(&stubFeedbackService{})

	t.Run("put on submissions", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Submissions(w, httptest.NewRequest(http.MethodPut, "/api/submissions", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, "Method not allowed", decodeBody(t, w)["error"])
	})

	t.Run("post on list", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.SubmissionsList(w, httptest.NewRequest(http.MethodPost, "/api/submissions-list", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestFeedbackHandler_SubmissionsList(t *testing.T) {
	service := &stubFeedbackService{
		records: []*entities.FeedbackRecord{
			{ID: 2, Rating: 3, Review: "ok", CreatedAt: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), Status: entities.FeedbackStatusPending},
		},
		total: 9,
	}
	handler := handlers.NewFeedbackHandler(service)

	w := httptest.NewRecorder()
	handler.SubmissionsList(w, httptest.NewRequest(http.MethodGet, "/api/submissions-list?rating=3&limit=1&offset=4", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(9), body["total"])
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "pending", data[0].(map[string]interface{})["status"])

	require.Len(t, service.listed, 1)
	assert.Equal(t, 3, *service.listed[0].Rating)
	assert.Equal(t, 1, service.listed[0].Limit)
	assert.Equal(t, 4, service.listed[0].Offset)
}

func TestFeedbackHandler_SubmissionsList_Defaults(t *testing.T) {
	service := &stubFeedbackService{}
	handler := handlers.NewFeedbackHandler(service)

	w := httptest.NewRecorder()
	handler.SubmissionsList(w, httptest.NewRequest(http.MethodGet, "/api/submissions-list?rating=all", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, []interface{}{}, body["data"])

	require.Len(t, service.listed, 1)
	assert.Nil(t, service.listed[0].Rating)
	assert.Equal(t, 50, service.listed[0].Limit)
	assert.Equal(t, 0, service.listed[0].Offset)
}

func TestFeedbackHandler_SubmissionsList_Errors(t *testing.T) {
	t.Run("unparsable limit", func(t *testing.T) {
		handler := handlers.NewFeedbackHandler(&stubFeedbackService{})
		w := httptest.NewRecorder()
		handler.SubmissionsList(w, httptest.NewRequest(http.MethodGet, "/api/submissions-list?limit=ten", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation from service", func(t *testing.T) {
		handler := handlers.NewFeedbackHandler(&stubFeedbackService{err: apperrors.NewValidationError(services.ErrInvalidRating)})
		w := httptest.NewRecorder()
		handler.SubmissionsList(w, httptest.NewRequest(http.MethodGet, "/api/submissions-list?rating=8", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, services.ErrInvalidRating, decodeBody(t, w)["error"])
	})

	t.Run("store failure", func(t *testing.T) {
		handler := handlers.NewFeedbackHandler(&stubFeedbackService{err: errors.New("boom")})
		w := httptest.NewRecorder()
		handler.SubmissionsList(w, httptest.NewRequest(http.MethodGet, "/api/submissions-list", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "Failed to fetch submissions", body["error"])
		assert.Equal(t, "boom", body["details"])
	})
}

type fixedStore bool

func (f fixedStore) Degraded() bool { return bool(f) }

type fixedInsights string

func (f fixedInsights) ProviderName() string { return string(f) }

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.NewHealthHandler(fixedStore(true), fixedInsights("fallback")).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["store"])
	assert.Equal(t, "fallback", body["insights"])

	w = httptest.NewRecorder()
	handlers.NewHealthHandler(fixedStore(false), fixedInsights("openai")).Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	body = decodeBody(t, w)
	assert.Equal(t, "postgres", body["store"])
	assert.Equal(t, "openai", body["insights"])
}
