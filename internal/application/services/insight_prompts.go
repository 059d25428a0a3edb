package services

import (
	"fmt"

	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
)

const (
	summarySystemPrompt = "You are a helpful assistant that summarizes customer feedback. Provide a concise 1-2 sentence summary."
	actionSystemPrompt  = "You are a customer service expert. Suggest a specific, actionable next step based on the feedback."
	replySystemPrompt   = "You are a customer service representative. Respond to customer feedback in a %s manner. Keep response to 2-3 sentences."
)

const (
	summaryReviewRunes = 500
	actionReviewRunes  = 300
	replyReviewRunes   = 300
)

func buildSummaryPrompt(review string) string {
	return fmt.Sprintf("Summarize this feedback: \"%s\"", truncateRunes(review, summaryReviewRunes))
}

func buildActionPrompt(rating int, review, summary string) string {
	return fmt.Sprintf(
		"Rating: %d/5\nSummary: %s\nOriginal feedback: \"%s\"\n\nWhat is the recommended next action?",
		rating, summary, truncateRunes(review, actionReviewRunes),
	)
}

func buildReplySystemPrompt(rating int) string {
	tone := "empathetic and constructive"
	if entities.IsPositive(rating) {
		tone = "grateful and enthusiastic"
	}
	return fmt.Sprintf(replySystemPrompt, tone)
}

func buildReplyPrompt(rating int, review string) string {
	return fmt.Sprintf("Customer gave %d/5 stars. Their feedback: \"%s\"", rating, truncateRunes(review, replyReviewRunes))
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
