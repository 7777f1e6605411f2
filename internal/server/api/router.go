package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/avolkov/cardbinder/internal/catalog"
	"github.com/avolkov/cardbinder/internal/logging"
	syncengine "github.com/avolkov/cardbinder/internal/sync"
)

// AvatarService is the slice of the avatar storage consumed by the handlers;
// *avatars.Service satisfies it.
type AvatarService interface {
	Upload(ctx context.Context, r io.Reader) (string, error)
	URL(ctx context.Context, key string) (string, error)
}

// Handler bundles the dependencies shared by all endpoints.
type Handler struct {
	engine  *syncengine.Engine
	catalog *catalog.Client
	avatars AvatarService
	log     logging.Logger
}

func NewHandler(engine *syncengine.Engine, catalogClient *catalog.Client, avatarService AvatarService, log logging.Logger) *Handler {
	return &Handler{
		engine:  engine,
		catalog: catalogClient,
		avatars: avatarService,
		log:     log,
	}
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/api/profiles", h.ListProfiles).Methods(http.MethodGet)
	r.HandleFunc("/api/profiles", h.CreateProfile).Methods(http.MethodPost)

	r.HandleFunc("/api/profiles/{profileID}/collection", h.ListCollection).Methods(http.MethodGet)
	r.HandleFunc("/api/profiles/{profileID}/collection", h.AddEntry).Methods(http.MethodPost)
	r.HandleFunc("/api/profiles/{profileID}/collection/{entryID}", h.EditEntry).Methods(http.MethodPatch)
	r.HandleFunc("/api/profiles/{profileID}/collection/{entryID}", h.RemoveEntry).Methods(http.MethodDelete)

	r.HandleFunc("/api/cards", h.SearchCards).Methods(http.MethodGet)
	r.HandleFunc("/api/cards/batch", h.BatchCards).Methods(http.MethodPost)
	r.HandleFunc("/api/cards/{cardID}", h.GetCard).Methods(http.MethodGet)

	r.HandleFunc("/api/facets/types", h.Types).Methods(http.MethodGet)
	r.HandleFunc("/api/facets/rarities", h.Rarities).Methods(http.MethodGet)
	r.HandleFunc("/api/facets/sets", h.Sets).Methods(http.MethodGet)

	r.HandleFunc("/api/sync", h.TriggerSync).Methods(http.MethodPost)
	r.HandleFunc("/api/sync/status", h.SyncStatus).Methods(http.MethodGet)

	return r
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
