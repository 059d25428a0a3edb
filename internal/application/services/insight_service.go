package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	"github.com/zatekoja/feedbackinsights/internal/domain/providers"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/observability"
)

const defaultInsightTimeout = 8 * time.Second

var errEmptyCompletion = errors.New("empty completion")

// Placeholders for a blank review.
const (
	NoReviewSummary = "No review provided"
	NoReviewAction  = "Acknowledge submission and follow up with user"
	NoReviewReply   = "Thank you for your submission. We appreciate your feedback!"
)

// Texts returned when a configured provider fails.
const (
	SummaryUnavailable = "Unable to generate summary at this time"
	ActionUnavailable  = "Review and respond to customer"
	ReplyUnavailable   = "Thank you for your feedback. We will review your submission and get back to you shortly."
)

// MockPrefix starts every text produced without a provider.
const MockPrefix = "Mock "

var (
	positiveMockActions = []string{
		"Follow up with customer to understand their experience better.",
		"Thank the customer personally and invite them to share their experience publicly.",
		"Share the praise with the team involved and note what went well.",
	}
	constructiveMockActions = []string{
		"Follow up with customer to understand their experience better.",
		"Escalate the issue to the responsible team and contact the customer within 24 hours.",
		"Offer the customer a direct support contact to resolve their concerns.",
	}
	positiveMockReplies = []string{
		"Thank you for your %d/5 star feedback! We appreciate you taking the time to share your thoughts with us.",
		"We're thrilled you rated us %d/5! Thanks for letting us know what we're doing right.",
	}
	constructiveMockReplies = []string{
		"Thank you for your %d/5 star feedback! We appreciate you taking the time to share your thoughts with us.",
		"Thanks for your %d/5 rating. We're sorry we fell short and we're looking into how to do better.",
	}
)

// InsightConfig configures an InsightService. A nil Provider selects the
// synthetic fallback texts.
type InsightConfig struct {
	Provider providers.CompletionProvider
	Timeout  time.Duration
	Rand     *rand.Rand
}

// InsightService produces the summary, recommended action and user reply for
// a feedback submission. It never fails: provider errors become fixed texts.
type InsightService struct {
	provider providers.CompletionProvider
	timeout  time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewInsightService creates a new insight service.
func NewInsightService(cfg InsightConfig) *InsightService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultInsightTimeout
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &InsightService{
		provider: cfg.Provider,
		timeout:  timeout,
		rnd:      rnd,
	}
}

// ProviderName reports the active provider, or "fallback" when none is set.
func (s *InsightService) ProviderName() string {
	if s.provider == nil {
		return "fallback"
	}
	return s.provider.Name()
}

// Summarize returns a short summary of review.
func (s *InsightService) Summarize(ctx context.Context, review string) string {
	if isBlank(review) {
		return NoReviewSummary
	}

	if s.provider == nil {
		return mockSummary(review)
	}

	return s.complete(ctx, "summary", SummaryUnavailable, providers.CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   buildSummaryPrompt(review),
		MaxTokens:    100,
		Temperature:  0.7,
	})
}

// RecommendAction suggests a next step for the business.
func (s *InsightService) RecommendAction(ctx context.Context, rating int, review, summary string) string {
	if isBlank(review) {
		return NoReviewAction
	}

	if s.provider == nil {
		actions := constructiveMockActions
		if entities.IsPositive(rating) {
			actions = positiveMockActions
		}
		return fmt.Sprintf("%srecommended action for %d/5 rating: %s", MockPrefix, rating, s.pick(actions))
	}

	return s.complete(ctx, "action", ActionUnavailable, providers.CompletionRequest{
		SystemPrompt: actionSystemPrompt,
		UserPrompt:   buildActionPrompt(rating, review, summary),
		MaxTokens:    150,
		Temperature:  0.7,
	})
}

// ComposeUserReply writes the reply shown to the customer.
func (s *InsightService) ComposeUserReply(ctx context.Context, rating int, review string) string {
	if isBlank(review) {
		return NoReviewReply
	}

	if s.provider == nil {
		tone, replies := "constructive", constructiveMockReplies
		if entities.IsPositive(rating) {
			tone, replies = "positive", positiveMockReplies
		}
		reply := fmt.Sprintf(s.pick(replies), rating)
		return fmt.Sprintf("%s%s response: %s", MockPrefix, tone, reply)
	}

	return s.complete(ctx, "reply", ReplyUnavailable, providers.CompletionRequest{
		SystemPrompt: buildReplySystemPrompt(rating),
		UserPrompt:   buildReplyPrompt(rating, review),
		MaxTokens:    150,
		Temperature:  0.8,
	})
}

func (s *InsightService) complete(ctx context.Context, operation, fallback string, req providers.CompletionRequest) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.provider.Complete(ctx, req)
	if err == nil {
		text = strings.TrimSpace(text)
		if text != "" {
			return text
		}
		err = errEmptyCompletion
	}

	reason := "error"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, errEmptyCompletion):
		reason = "empty"
	}

	observability.LoggerFromContext(ctx).Warn().
		Err(err).
		Str("operation", operation).
		Str("provider", s.provider.Name()).
		Msg("insight generation failed, using fallback text")
	observability.RecordInsightFallback(ctx, operation, reason)

	return fallback
}

func (s *InsightService) pick(options []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return options[s.rnd.IntN(len(options))]
}

func mockSummary(review string) string {
	excerpt := truncateRunes(review, 50)
	if excerpt != review {
		excerpt += "..."
	}
	return fmt.Sprintf("%ssummary: \"%s\"", MockPrefix, excerpt)
}

func isBlank(review string) bool {
	return strings.TrimSpace(review) == ""
}
