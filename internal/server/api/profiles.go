package api

import (
	"net/http"
	"time"

	"github.com/avolkov/cardbinder/internal/models"
)

// maxAvatarUpload caps the multipart body of a profile create.
const maxAvatarUpload = 8 << 20

type profileResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
}

func (h *Handler) profileResponse(r *http.Request, p models.Profile) profileResponse {
	resp := profileResponse{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
	if p.Avatar != nil && *p.Avatar != "" {
		url, err := h.avatars.URL(r.Context(), *p.Avatar)
		if err != nil {
			h.log.Warn(r.Context(), "avatar presign failed", "profile", p.ID, "error", err)
		} else {
			resp.AvatarURL = &url
		}
	}
	return resp
}

// ListProfiles handles GET /api/profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.engine.SyncProfiles(r.Context())
	if err != nil {
		domainError(w, err)
		return
	}

	out := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, h.profileResponse(r, p))
	}
	jsonResponse(w, http.StatusOK, out)
}

// CreateProfile handles POST /api/profiles. The request is multipart: a
// required "name" field and an optional "avatar" image file.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarUpload)
	if err := r.ParseMultipartForm(maxAvatarUpload); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	var avatarKey *string
	if file, _, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		key, err := h.avatars.Upload(r.Context(), file)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		avatarKey = &key
	}

	profile, err := h.engine.CreateProfile(r.Context(), name, avatarKey)
	if err != nil {
		domainError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, h.profileResponse(r, *profile))
}
