// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	stats StatsProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats}
}

// HandleHealth handles GET /health requests with the hub's connection
// counts folded into the status document.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{}
	for k, v := range h.stats.GetStats() {
		body[k] = v
	}
	body["status"] = "ok"
	writeJSON(w, http.StatusOK, body)
}
