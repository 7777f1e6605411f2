// Package api exposes the HTTP surface of the CardBinder server: profiles,
// per-profile collections, catalog search, and sync control. Handlers are
// thin; all domain decisions live in the sync engine and the catalog client.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avolkov/cardbinder/internal/catalog"
	"github.com/avolkov/cardbinder/internal/common"
)

// jsonResponse writes a JSON response with the given status code. Encoding
// failures mean the client went away; there is nothing useful left to do.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// domainError maps sentinel errors from the engine and catalog onto HTTP
// status codes.
func domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrInvalidQuantity), errors.Is(err, common.ErrInvalidCondition):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrOffline):
		jsonError(w, http.StatusServiceUnavailable, "remote store unreachable")
	case errors.Is(err, common.ErrNoLocalData):
		jsonError(w, http.StatusServiceUnavailable, "offline and nothing cached")
	default:
		var fetchErr *catalog.FetchError
		if errors.As(err, &fetchErr) {
			jsonError(w, http.StatusBadGateway, fetchErr.Error())
			return
		}
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
