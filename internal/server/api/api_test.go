package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/cardbinder/internal/cache"
	"github.com/avolkov/cardbinder/internal/catalog"
	"github.com/avolkov/cardbinder/internal/common"
	"github.com/avolkov/cardbinder/internal/logging"
	"github.com/avolkov/cardbinder/internal/models"
	syncengine "github.com/avolkov/cardbinder/internal/sync"
)

// fakeRemote is a minimal in-memory remote.Store for handler tests.
type fakeRemote struct {
	mu       sync.Mutex
	online   bool
	profiles []models.Profile
	entries  map[string]models.CollectionEntry
	nextID   int
}

func newFakeRemote(online bool) *fakeRemote {
	return &fakeRemote{online: online, entries: make(map[string]models.CollectionEntry)}
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeRemote) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Profile(nil), f.profiles...), nil
}

func (f *fakeRemote) CreateProfile(ctx context.Context, name string, avatar *string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := models.Profile{ID: fmt.Sprintf("prof-%d", len(f.profiles)+1), Name: name, CreatedAt: time.Now().UTC(), Avatar: avatar}
	f.profiles = append(f.profiles, p)
	return &p, nil
}

func (f *fakeRemote) ListEntries(ctx context.Context, profileID string) ([]models.CollectionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CollectionEntry
	for _, e := range f.entries {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateEntry(ctx context.Context, e models.CollectionEntry) (*models.CollectionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		f.nextID++
		e.ID = fmt.Sprintf("srv-%d", f.nextID)
	}
	f.entries[e.ID] = e
	return &e, nil
}

func (f *fakeRemote) UpdateEntry(ctx context.Context, e models.CollectionEntry) (*models.CollectionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.entries[e.ID]
	if !ok {
		return nil, common.ErrNotFound
	}
	existing.Quantity = e.Quantity
	existing.Condition = e.Condition
	existing.Notes = e.Notes
	f.entries[e.ID] = existing
	return &existing, nil
}

func (f *fakeRemote) DeleteEntry(ctx context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, entryID)
	return nil
}

type fakeAvatars struct {
	uploadErr error
	uploaded  int
}

func (f *fakeAvatars) Upload(ctx context.Context, r io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploaded++
	return "avatars/fixed.jpg", nil
}

func (f *fakeAvatars) URL(ctx context.Context, key string) (string, error) {
	return "https://storage.example/" + key + "?sig=abc", nil
}

// catalogBackend serves canned Pokemon TCG API responses.
func catalogBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cards", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []models.CatalogItem{
			{ID: "base1-4", Name: "Charizard", Rarity: "Rare Holo"},
		}})
	})
	mux.HandleFunc("/cards/base1-4", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": models.CatalogItem{
			ID: "base1-4", Name: "Charizard", Rarity: "Rare Holo",
		}})
	})
	mux.HandleFunc("/types", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []string{"Fire", "Water"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	handler *Handler
	remote  *fakeRemote
	cache   *cache.Store
	avatars *fakeAvatars
}

func newTestEnv(t *testing.T, online bool) *testEnv {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.DiscardHandler))

	c, err := cache.Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), log, 0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	remote := newFakeRemote(online)
	engine := syncengine.New(remote, c, log)
	catalogClient := catalog.NewClient(catalogBackend(t).URL, "", c, log)
	av := &fakeAvatars{}

	return &testEnv{
		handler: NewHandler(engine, catalogClient, av, log),
		remote:  remote,
		cache:   c,
		avatars: av,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	NewRouter(env.handler).ServeHTTP(rec, req)
	return rec
}

func multipartProfile(t *testing.T, name string, avatar []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", name))
	if avatar != nil {
		fw, err := mw.CreateFormFile("avatar", "avatar.png")
		require.NoError(t, err)
		_, err = fw.Write(avatar)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListProfiles_PresignsAvatars(t *testing.T) {
	env := newTestEnv(t, true)
	key := "avatars/fixed.jpg"
	env.remote.profiles = []models.Profile{
		{ID: "prof-1", Name: "Ada", Avatar: &key},
		{ID: "prof-2", Name: "Ben"},
	}

	rec := env.do(t, http.MethodGet, "/api/profiles", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []profileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.NotNil(t, got[0].AvatarURL)
	assert.Equal(t, "https://storage.example/avatars/fixed.jpg?sig=abc", *got[0].AvatarURL)
	assert.Nil(t, got[1].AvatarURL)
}

func TestListProfiles_OfflineWithEmptyCache(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/api/profiles", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateProfile(t *testing.T) {
	env := newTestEnv(t, true)
	body, ct := multipartProfile(t, "Ada", nil)

	rec := env.do(t, http.MethodPost, "/api/profiles", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got profileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "prof-1", got.ID)
	assert.Equal(t, "Ada", got.Name)
}

func TestCreateProfile_WithAvatar(t *testing.T) {
	env := newTestEnv(t, true)
	body, ct := multipartProfile(t, "Ada", []byte("fake image bytes"))

	rec := env.do(t, http.MethodPost, "/api/profiles", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, env.avatars.uploaded)

	var got profileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.AvatarURL)
}

func TestCreateProfile_MissingName(t *testing.T) {
	env := newTestEnv(t, true)
	body, ct := multipartProfile(t, "", nil)

	rec := env.do(t, http.MethodPost, "/api/profiles", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProfile_Offline(t *testing.T) {
	env := newTestEnv(t, false)
	body, ct := multipartProfile(t, "Ada", nil)

	rec := env.do(t, http.MethodPost, "/api/profiles", body, ct)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAddEntry(t *testing.T) {
	env := newTestEnv(t, true)
	body := strings.NewReader(`{"catalog_item_id":"base1-4","quantity":2,"condition":"near-mint"}`)

	rec := env.do(t, http.MethodPost, "/api/profiles/prof-1/collection", body, "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	var got models.CollectionEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "srv-1", got.ID)
	assert.Equal(t, 2, got.Quantity)
}

func TestAddEntry_OfflineStillSucceeds(t *testing.T) {
	env := newTestEnv(t, false)
	body := strings.NewReader(`{"catalog_item_id":"base1-4","quantity":1,"condition":"played"}`)

	rec := env.do(t, http.MethodPost, "/api/profiles/prof-1/collection", body, "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	var got models.CollectionEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, strings.HasPrefix(got.ID, "local-"))
	assert.Len(t, env.cache.PendingOperations(context.Background()), 1)
}

func TestAddEntry_InvalidQuantity(t *testing.T) {
	env := newTestEnv(t, true)
	body := strings.NewReader(`{"catalog_item_id":"base1-4","quantity":0,"condition":"near-mint"}`)

	rec := env.do(t, http.MethodPost, "/api/profiles/prof-1/collection", body, "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddEntry_InvalidCondition(t *testing.T) {
	env := newTestEnv(t, true)
	body := strings.NewReader(`{"catalog_item_id":"base1-4","quantity":1,"condition":"pristine"}`)

	rec := env.do(t, http.MethodPost, "/api/profiles/prof-1/collection", body, "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditEntry_NotFound(t *testing.T) {
	env := newTestEnv(t, true)
	body := strings.NewReader(`{"quantity":1,"condition":"near-mint"}`)

	rec := env.do(t, http.MethodPatch, "/api/profiles/prof-1/collection/missing", body, "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditAndRemoveEntry(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	addBody := strings.NewReader(`{"catalog_item_id":"base1-4","quantity":1,"condition":"near-mint"}`)
	rec := env.do(t, http.MethodPost, "/api/profiles/prof-1/collection", addBody, "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	editBody := strings.NewReader(`{"quantity":3,"condition":"played","notes":"traded"}`)
	rec = env.do(t, http.MethodPatch, "/api/profiles/prof-1/collection/srv-1", editBody, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.CollectionEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, models.ConditionPlayed, got.Condition)

	rec = env.do(t, http.MethodDelete, "/api/profiles/prof-1/collection/srv-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	col, ok := env.cache.Collection(ctx, "prof-1")
	require.True(t, ok)
	assert.Empty(t, col)
}

func TestListCollection(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	rec := env.do(t, http.MethodGet, "/api/profiles/prof-1/collection", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "offline with an empty cache")

	seed := models.CollectionEntry{ID: "srv-1", ProfileID: "prof-1", CatalogItemID: "base1-4", Quantity: 1, Condition: models.ConditionNearMint}
	require.NoError(t, env.cache.SetCollection(ctx, "prof-1", []models.CollectionEntry{seed}))

	rec = env.do(t, http.MethodGet, "/api/profiles/prof-1/collection", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.CollectionEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "srv-1", got[0].ID)
}

func TestSearchCards(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/api/cards", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "q is required")

	rec = env.do(t, http.MethodGet, "/api/cards?q=charizard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.CatalogItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Charizard", got[0].Name)
}

func TestGetCard(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/api/cards/base1-4", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.CatalogItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "base1-4", got.ID)
}

func TestBatchCards_RequiresIDs(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/cards/batch", strings.NewReader(`{"ids":[]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFacetTypes(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/api/facets/types", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"Fire", "Water"}, got)
}

func TestTriggerSync(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/sync", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "profile is required")

	rec = env.do(t, http.MethodPost, "/api/sync?profile=prof-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "idle")
}

func TestSyncStatus(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/api/sync/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "idle")
}
