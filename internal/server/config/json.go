package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avolkov/cardbinder/internal/flagx"
	"github.com/avolkov/cardbinder/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON configuration
// files. Interval fields use timex.Duration, which accepts both string values
// such as "1h" and integer nanoseconds. After unmarshalling, its fields are
// copied into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr        string         `json:"endpoint_addr"`
	CacheDSN            string         `json:"cache_dsn"`
	DatabaseDSN         string         `json:"database_dsn"`
	CatalogBaseURL      string         `json:"catalog_base_url"`
	CatalogAPIKey       string         `json:"catalog_api_key"`
	SearchCacheLifetime timex.Duration `json:"search_cache_lifetime"`
	ItemCacheLifetime   timex.Duration `json:"item_cache_lifetime"`
	ProbeTimeout        timex.Duration `json:"probe_timeout"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when neither
// is set, no JSON file is loaded. A file that cannot be read or contains
// invalid JSON panics: a half-applied configuration is worse than a crash at
// startup. A provided file is expected to be complete.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.CacheDSN = c.CacheDSN
	config.DatabaseDSN = c.DatabaseDSN
	config.CatalogBaseURL = c.CatalogBaseURL
	config.CatalogAPIKey = c.CatalogAPIKey
	config.SearchCacheLifetime = time.Duration(c.SearchCacheLifetime.Duration)
	config.ItemCacheLifetime = time.Duration(c.ItemCacheLifetime.Duration)
	config.ProbeTimeout = time.Duration(c.ProbeTimeout.Duration)
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
