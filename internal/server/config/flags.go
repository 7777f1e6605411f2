package config

import (
	"flag"
	"os"
	"time"

	"github.com/avolkov/cardbinder/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-l string   local SQLite cache path
//	-d string   PostgreSQL DSN
//	-u string   catalog base URL
//	-k string   catalog API key
//	-t int      search cache lifetime, minutes
//	-r int      item cache lifetime, minutes
//	-i string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration flags
// are accepted as integers in minutes and then converted to time.Duration
// values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-l", "-d", "-u", "-k", "-t", "-r", "-i", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.CacheDSN, "l", config.CacheDSN, "local cache database path")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.CatalogBaseURL, "u", config.CatalogBaseURL, "catalog base URL")
	fs.StringVar(&config.CatalogAPIKey, "k", config.CatalogAPIKey, "catalog API key")

	searchCacheLifetime := fs.Int("t", int(config.SearchCacheLifetime.Minutes()), "search_cache_lifetime (in minutes)")
	itemCacheLifetime := fs.Int("r", int(config.ItemCacheLifetime.Minutes()), "item_cache_lifetime (in minutes)")

	fs.StringVar(&config.S3AccessKey, "i", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SearchCacheLifetime = time.Duration(*searchCacheLifetime) * time.Minute
	config.ItemCacheLifetime = time.Duration(*itemCacheLifetime) * time.Minute
}
