// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// StatsProvider reports a point-in-time view of the running pipeline,
// keyed by stat name. Values must be JSON-encodable.
type StatsProvider interface {
	Stats() map[string]any
}

// StatsHandler serves the pipeline view on GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a handler over the given provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats renders the provider's current view as JSON. Non-GET
// requests get a 404.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Stats())
}
