package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/avolkov/cardbinder/internal/models"
)

type batchCardsRequest struct {
	IDs []string `json:"ids"`
}

// SearchCards handles GET /api/cards?q=<name>.
func (h *Handler) SearchCards(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		jsonError(w, http.StatusBadRequest, "q required")
		return
	}

	items, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		domainError(w, err)
		return
	}
	if items == nil {
		items = []models.CatalogItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// GetCard handles GET /api/cards/{cardID}.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.GetByID(r.Context(), mux.Vars(r)["cardID"])
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// BatchCards handles POST /api/cards/batch. Used to hydrate a collection
// view: one request resolves every referenced catalog item.
func (h *Handler) BatchCards(w http.ResponseWriter, r *http.Request) {
	var req batchCardsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		jsonError(w, http.StatusBadRequest, "ids required")
		return
	}

	items, err := h.catalog.GetByIDs(r.Context(), req.IDs)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Types handles GET /api/facets/types.
func (h *Handler) Types(w http.ResponseWriter, r *http.Request) {
	types, err := h.catalog.Types(r.Context())
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, types)
}

// Rarities handles GET /api/facets/rarities.
func (h *Handler) Rarities(w http.ResponseWriter, r *http.Request) {
	rarities, err := h.catalog.Rarities(r.Context())
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, rarities)
}

// Sets handles GET /api/facets/sets.
func (h *Handler) Sets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.catalog.Sets(r.Context())
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, sets)
}
