package handlers

import "net/http"

// StoreStatus reports whether the feedback store has fallen back to memory.
type StoreStatus interface {
	Degraded() bool
}

// InsightStatus reports which insight generator is active.
type InsightStatus interface {
	ProviderName() string
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	store    StoreStatus
	insights InsightStatus
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store StoreStatus, insights InsightStatus) *HealthHandler {
	return &HealthHandler{store: store, insights: insights}
}

type healthResponse struct {
	Status   string `json:"status"`
	Store    string `json:"store"`
	Insights string `json:"insights"`
}

// Health reports the active store and insight generator.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	store := "postgres"
	if h.store == nil || h.store.Degraded() {
		store = "memory"
	}

	insights := "fallback"
	if h.insights != nil {
		insights = h.insights.ProviderName()
	}

	respondWithJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Store:    store,
		Insights: insights,
	})
}
