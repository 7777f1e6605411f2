// Package catalog implements the client for the external card catalog
// service: name search, id lookup, batched id lookup, and facet lists, with
// transparent caching through the local cache store. The catalog is
// read-only; this client never mutates anything.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/avolkov/cardbinder/internal/cache"
	"github.com/avolkov/cardbinder/internal/logging"
	"github.com/avolkov/cardbinder/internal/models"
)

const (
	searchPageSize = 50

	// maxBatchIDs caps the OR-joined id expression so a large id set cannot
	// exceed server-side query-length limits; bigger sets are fetched in
	// sequential chunks.
	maxBatchIDs = 20

	apiKeyHeader = "X-Api-Key"
)

// Client fetches card metadata from the external catalog service.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	cache   *cache.Store
	log     logging.Logger
}

// NewClient builds a catalog client. apiKey may be empty; the header is then
// omitted. store must not be nil: all lookups are cached through it.
func NewClient(baseURL, apiKey string, store *cache.Store, log logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{},
		cache:   store,
		log:     log,
	}
}

type cardListResponse struct {
	Data []models.CatalogItem `json:"data"`
}

type cardResponse struct {
	Data models.CatalogItem `json:"data"`
}

type stringListResponse struct {
	Data []string `json:"data"`
}

type setListResponse struct {
	Data []models.CatalogSet `json:"data"`
}

// getJSON issues a GET against path with query values and decodes the body
// into out. All failure modes map to *FetchError.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &FetchError{Message: err.Error()}
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &FetchError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &FetchError{Status: resp.StatusCode, Message: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

// Search looks up cards by name. The query is case-normalized and checked
// against the search cache first; on a miss the result set is fetched,
// cached, and every returned item is additionally seeded into the per-item
// cache so subsequent detail views are free.
func (c *Client) Search(ctx context.Context, query string) ([]models.CatalogItem, error) {
	normalized := cache.NormalizeQuery(query)

	if items, ok := c.cache.CachedSearch(ctx, normalized); ok {
		return items, nil
	}

	q := url.Values{}
	q.Set("q", buildSearchExpr(normalized))
	q.Set("pageSize", fmt.Sprint(searchPageSize))

	var resp cardListResponse
	if err := c.getJSON(ctx, "/cards", q, &resp); err != nil {
		return nil, err
	}

	if err := c.cache.SetCachedSearch(ctx, normalized, resp.Data); err != nil {
		c.log.Warn(ctx, "failed to cache search result", "query", normalized, "error", err)
	}
	for _, item := range resp.Data {
		if err := c.cache.SetCachedItem(ctx, item); err != nil {
			c.log.Warn(ctx, "failed to seed item cache", "item", item.ID, "error", err)
		}
	}

	return resp.Data, nil
}

// GetByID returns a single card, cache-first.
func (c *Client) GetByID(ctx context.Context, itemID string) (*models.CatalogItem, error) {
	if item, ok := c.cache.CachedItem(ctx, itemID); ok {
		return item, nil
	}

	var resp cardResponse
	if err := c.getJSON(ctx, "/cards/"+url.PathEscape(itemID), nil, &resp); err != nil {
		return nil, err
	}

	if err := c.cache.SetCachedItem(ctx, resp.Data); err != nil {
		c.log.Warn(ctx, "failed to cache item", "item", itemID, "error", err)
	}
	return &resp.Data, nil
}

// GetByIDs returns cards for the given ids, partitioning them into already
// cached and missing, and fetching the missing subset in OR-joined batches of
// at most maxBatchIDs. The result preserves the requested id order; ids the
// catalog does not know are silently omitted.
func (c *Client) GetByIDs(ctx context.Context, itemIDs []string) ([]models.CatalogItem, error) {
	found := make(map[string]models.CatalogItem, len(itemIDs))

	var missing []string
	for _, id := range itemIDs {
		if _, dup := found[id]; dup {
			continue
		}
		if item, ok := c.cache.CachedItem(ctx, id); ok {
			found[id] = *item
		} else {
			missing = append(missing, id)
		}
	}

	for start := 0; start < len(missing); start += maxBatchIDs {
		end := min(start+maxBatchIDs, len(missing))
		batch := missing[start:end]

		q := url.Values{}
		q.Set("q", buildIDExpr(batch))

		var resp cardListResponse
		if err := c.getJSON(ctx, "/cards", q, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Data {
			found[item.ID] = item
			if err := c.cache.SetCachedItem(ctx, item); err != nil {
				c.log.Warn(ctx, "failed to cache item", "item", item.ID, "error", err)
			}
		}
	}

	result := make([]models.CatalogItem, 0, len(found))
	seen := make(map[string]struct{}, len(found))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if item, ok := found[id]; ok {
			result = append(result, item)
		}
	}
	return result, nil
}

// Types lists card types. Facet lists are small and infrequently requested,
// so they bypass the cache.
func (c *Client) Types(ctx context.Context) ([]string, error) {
	var resp stringListResponse
	if err := c.getJSON(ctx, "/types", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Rarities lists card rarities, uncached.
func (c *Client) Rarities(ctx context.Context) ([]string, error) {
	var resp stringListResponse
	if err := c.getJSON(ctx, "/rarities", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Sets lists card sets, uncached.
func (c *Client) Sets(ctx context.Context) ([]models.CatalogSet, error) {
	var resp setListResponse
	if err := c.getJSON(ctx, "/sets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
