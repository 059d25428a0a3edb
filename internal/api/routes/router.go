package routes

import (
	"net/http"

	"github.com/zatekoja/feedbackinsights/internal/api/handlers"
	"github.com/zatekoja/feedbackinsights/internal/api/middleware"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	feedbackHandler *handlers.FeedbackHandler
	healthHandler   *handlers.HealthHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	feedbackHandler *handlers.FeedbackHandler,
	healthHandler *handlers.HealthHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		feedbackHandler: feedbackHandler,
		healthHandler:   healthHandler,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Feedback endpoints. Registered without a method so the handlers can
	// answer unsupported methods with a JSON 405.
	r.mux.Handle("/api/submissions",
		middleware.CORSMiddleware(http.MethodPost)(http.HandlerFunc(r.feedbackHandler.Submissions)))
	r.mux.Handle("/api/submissions-list",
		middleware.CORSMiddleware(http.MethodGet)(http.HandlerFunc(r.feedbackHandler.SubmissionsList)))

	// Apply middleware in reverse order (last middleware wraps first).
	// Observability sits directly on the mux so it sees the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}
