package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zatekoja/feedbackinsights/internal/application/services"
	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/feedbackinsights/pkg/errors"
)

const (
	maxReviewLength   = 2000
	maxRequestBody    = 64 << 10
	defaultListLimit  = 50
	submitFailedError = "Failed to submit feedback"
	listFailedError   = "Failed to fetch submissions"

	invalidReviewError = "Review must be a string"
)

// FeedbackService defines the feedback operations used by the handler.
type FeedbackService interface {
	Submit(ctx context.Context, input services.SubmitInput) (*entities.FeedbackRecord, error)
	List(ctx context.Context, input services.ListInput) ([]*entities.FeedbackRecord, int, error)
}

// FeedbackHandler serves the submission and listing endpoints.
type FeedbackHandler struct {
	service FeedbackService
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(service FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// FeedbackRecordWire is the JSON shape of a feedback record.
type FeedbackRecordWire struct {
	ID                int64  `json:"id"`
	Rating            int    `json:"rating"`
	Review            string `json:"review"`
	AISummary         string `json:"aiSummary"`
	RecommendedAction string `json:"recommendedAction"`
	UserResponse      string `json:"userResponse"`
	CreatedAt         string `json:"createdAt"`
	Status            string `json:"status"`
}

func toWire(record *entities.FeedbackRecord) FeedbackRecordWire {
	return FeedbackRecordWire{
		ID:                record.ID,
		Rating:            record.Rating,
		Review:            record.Review,
		AISummary:         record.AISummary,
		RecommendedAction: record.RecommendedAction,
		UserResponse:      record.UserResponse,
		CreatedAt:         record.CreatedAt.UTC().Format(time.RFC3339Nano),
		Status:            string(record.Status),
	}
}

type submitRequest struct {
	Rating json.RawMessage `json:"rating"`
	Review json.RawMessage `json:"review"`
}

// decodeRating accepts any JSON number without a fractional part, so 5 and
// 5.0 are the same rating. A missing or null rating yields nil.
func decodeRating(raw json.RawMessage) (*int, bool) {
	if isAbsent(raw) {
		return nil, true
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	if value != math.Trunc(value) || math.Abs(value) > math.MaxInt32 {
		return nil, false
	}
	rating := int(value)
	return &rating, true
}

func decodeReview(raw json.RawMessage) (string, bool) {
	if isAbsent(raw) {
		return "", true
	}
	var review string
	if err := json.Unmarshal(raw, &review); err != nil {
		return "", false
	}
	return review, true
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

type submitResponse struct {
	Success bool               `json:"success"`
	Data    FeedbackRecordWire `json:"data"`
}

type listResponse struct {
	Success bool                 `json:"success"`
	Data    []FeedbackRecordWire `json:"data"`
	Total   int                  `json:"total"`
}

// Submissions handles /api/submissions
func (h *FeedbackHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submit(w, r)
	default:
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// SubmissionsList handles /api/submissions-list
func (h *FeedbackHandler) SubmissionsList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	default:
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *FeedbackHandler) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var payload submitRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, services.ErrInvalidRating)
		return
	}

	rating, ok := decodeRating(payload.Rating)
	if !ok {
		respondWithError(w, http.StatusBadRequest, services.ErrInvalidRating)
		return
	}

	review, ok := decodeReview(payload.Review)
	if !ok {
		respondWithError(w, http.StatusBadRequest, invalidReviewError)
		return
	}
	if utf8.RuneCountInString(review) > maxReviewLength {
		respondWithError(w, http.StatusBadRequest, "Review must be 2000 characters or fewer")
		return
	}

	record, err := h.service.Submit(r.Context(), services.SubmitInput{
		Rating: rating,
		Review: review,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, submitFailedError)
		return
	}

	respondWithJSON(w, http.StatusCreated, submitResponse{
		Success: true,
		Data:    toWire(record),
	})
}

func (h *FeedbackHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	input := services.ListInput{Limit: defaultListLimit}

	if raw := strings.TrimSpace(query.Get("rating")); raw != "" && raw != "all" {
		rating, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "rating must be a number between 1 and 5 or \"all\"")
			return
		}
		input.Rating = &rating
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		input.Limit = limit
	}

	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		input.Offset = offset
	}

	records, total, err := h.service.List(r.Context(), input)
	if err != nil {
		h.respondWithServiceError(w, r, err, listFailedError)
		return
	}

	data := make([]FeedbackRecordWire, 0, len(records))
	for _, record := range records {
		data = append(data, toWire(record))
	}

	respondWithJSON(w, http.StatusOK, listResponse{
		Success: true,
		Data:    data,
		Total:   total,
	})
}

func (h *FeedbackHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		respondWithError(w, http.StatusBadRequest, apperrors.Message(err))
		return
	}

	observability.LoggerFromContext(r.Context()).Error().
		Err(err).
		Str("path", r.URL.Path).
		Msg(message)
	respondWithErrorDetails(w, http.StatusInternalServerError, message, err.Error())
}
