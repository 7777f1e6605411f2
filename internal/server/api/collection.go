package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/avolkov/cardbinder/internal/models"
)

type addEntryRequest struct {
	CatalogItemID string  `json:"catalog_item_id"`
	Quantity      int     `json:"quantity"`
	Condition     string  `json:"condition"`
	Notes         *string `json:"notes,omitempty"`
}

type editEntryRequest struct {
	Quantity  int     `json:"quantity"`
	Condition string  `json:"condition"`
	Notes     *string `json:"notes,omitempty"`
}

// ListCollection handles GET /api/profiles/{profileID}/collection.
func (h *Handler) ListCollection(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]

	entries, err := h.engine.SyncCollection(r.Context(), profileID)
	if err != nil {
		domainError(w, err)
		return
	}
	if entries == nil {
		entries = []models.CollectionEntry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

// AddEntry handles POST /api/profiles/{profileID}/collection.
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]

	var req addEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CatalogItemID == "" {
		jsonError(w, http.StatusBadRequest, "catalog_item_id required")
		return
	}

	entry, err := h.engine.CreateEntry(r.Context(), profileID, req.CatalogItemID, req.Quantity, models.Condition(req.Condition), req.Notes)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, entry)
}

// EditEntry handles PATCH /api/profiles/{profileID}/collection/{entryID}.
func (h *Handler) EditEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req editEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.engine.UpdateEntry(r.Context(), vars["profileID"], vars["entryID"], req.Quantity, models.Condition(req.Condition), req.Notes)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, entry)
}

// RemoveEntry handles DELETE /api/profiles/{profileID}/collection/{entryID}.
func (h *Handler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.engine.DeleteEntry(r.Context(), vars["profileID"], vars["entryID"]); err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "entry deleted"})
}
