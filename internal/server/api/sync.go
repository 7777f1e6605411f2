package api

import (
	"net/http"
)

// TriggerSync handles POST /api/sync?profile=<id>: replay queued writes, then
// pull fresh server state for the given profile.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profile")
	if profileID == "" {
		jsonError(w, http.StatusBadRequest, "profile required")
		return
	}

	if err := h.engine.FullSync(r.Context(), profileID); err != nil {
		h.log.Warn(r.Context(), "sync failed", "profile", profileID, "error", err)
		jsonError(w, http.StatusServiceUnavailable, "sync incomplete, queued writes preserved")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": string(h.engine.Status())})
}

// SyncStatus handles GET /api/sync/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": string(h.engine.Status())})
}
