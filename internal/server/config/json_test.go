package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr":         "www.example:9000",
		"cache_dsn":             "binder.db",
		"database_dsn":          "postgres://remote/cardbinder",
		"catalog_base_url":      "https://catalog.example/v2",
		"catalog_api_key":       "my_api_key",
		"search_cache_lifetime": "30m",
		"item_cache_lifetime":   "12h",
		"probe_timeout":         "5s",
		"s3_access_key":         "user",
		"s3_secret_key":         "password",
		"s3_bucket":             "bucket",
		"s3_region":             "region",
		"s3_base_endpoint":      "base_endpoint",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddr)
		assert.Equal(t, "binder.db", cfg.CacheDSN)
		assert.Equal(t, "postgres://remote/cardbinder", cfg.DatabaseDSN)
		assert.Equal(t, "https://catalog.example/v2", cfg.CatalogBaseURL)
		assert.Equal(t, "my_api_key", cfg.CatalogAPIKey)
		assert.Equal(t, 30*time.Minute, cfg.SearchCacheLifetime)
		assert.Equal(t, 12*time.Hour, cfg.ItemCacheLifetime)
		assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
		assert.Equal(t, "user", cfg.S3AccessKey)
		assert.Equal(t, "password", cfg.S3SecretKey)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddr:        "defaults:1234",
			CacheDSN:            "binder.db",
			DatabaseDSN:         "postgres://local/cardbinder",
			CatalogBaseURL:      "https://catalog.example/v2",
			CatalogAPIKey:       "key",
			SearchCacheLifetime: 2 * time.Hour,
			ItemCacheLifetime:   3 * time.Hour,
			ProbeTimeout:        1 * time.Second,
			S3AccessKey:         "s3user",
			S3SecretKey:         "s3password",
			S3Bucket:            "s3bucket",
			S3Region:            "s3region",
			S3BaseEndpoint:      "s3baseendpoint",
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddr)
		assert.Equal(t, "binder.db", cfg.CacheDSN)
		assert.Equal(t, "postgres://local/cardbinder", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.CatalogAPIKey)
		assert.Equal(t, 2*time.Hour, cfg.SearchCacheLifetime)
		assert.Equal(t, 3*time.Hour, cfg.ItemCacheLifetime)
		assert.Equal(t, 1*time.Second, cfg.ProbeTimeout)
		assert.Equal(t, "s3user", cfg.S3AccessKey)
		assert.Equal(t, "s3bucket", cfg.S3Bucket)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
