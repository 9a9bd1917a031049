// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Cache backend selectors.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// AppConfig is the complete service configuration.
type AppConfig struct {
	// HTTP server
	ListenAddr string

	// upstream enviPath
	EnviPathHost  string
	Packages      []string // registry keys to refresh
	FetchLimit    int      // reactions per package, 0 = all
	RetryAttempts int
	RetryBackoff  time.Duration

	// persistence
	DataDir     string // JSON snapshots
	BadgerDir   string // blueprint store
	CatalogPath string // SQLite catalog

	// background refresh
	RefreshInterval time.Duration // 0 disables periodic refresh

	// search result cache
	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// logging
	LogLevel string
}

// FromEnv builds the configuration from METATREE_* environment variables.
func FromEnv() AppConfig {
	dataDir := ParseString("METATREE_DATA_DIR", "./data")
	return AppConfig{
		ListenAddr: ParseString("METATREE_LISTEN", ":8080"),

		EnviPathHost:  ParseString("METATREE_ENVIPATH_HOST", "https://envipath.org"),
		Packages:      ParseStringSlice("METATREE_PACKAGES", []string{"eawag_soil", "eawag_sludge", "eawag_bbd"}),
		FetchLimit:    ParseInt("METATREE_FETCH_LIMIT", 0),
		RetryAttempts: ParseInt("METATREE_RETRY_ATTEMPTS", 5),
		RetryBackoff:  ParseDuration("METATREE_RETRY_BACKOFF", 1*time.Second),

		DataDir:     dataDir,
		BadgerDir:   ParseString("METATREE_BADGER_DIR", filepath.Join(dataDir, "blueprints")),
		CatalogPath: ParseString("METATREE_CATALOG_PATH", filepath.Join(dataDir, "catalog.db")),

		RefreshInterval: ParseDuration("METATREE_REFRESH_INTERVAL", 0),

		CacheBackend:  ParseString("METATREE_CACHE_BACKEND", CacheMemory),
		CacheTTL:      ParseDuration("METATREE_CACHE_TTL", 10*time.Minute),
		RedisAddr:     ParseString("METATREE_REDIS_ADDR", "localhost:6379"),
		RedisPassword: ParseString("METATREE_REDIS_PASSWORD", ""),
		RedisDB:       ParseInt("METATREE_REDIS_DB", 0),

		LogLevel: ParseString("METATREE_LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration for values that cannot work.
func (c *AppConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}

	u, err := url.Parse(c.EnviPathHost)
	if err != nil {
		return fmt.Errorf("config: invalid enviPath host: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: enviPath host must be http or https, got %q", c.EnviPathHost)
	}
	if u.Host == "" {
		return fmt.Errorf("config: enviPath host has no host part: %q", c.EnviPathHost)
	}

	if len(c.Packages) == 0 {
		return fmt.Errorf("config: at least one package must be configured")
	}
	if c.FetchLimit < 0 {
		return fmt.Errorf("config: fetch limit must not be negative, got %d", c.FetchLimit)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("config: retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data directory must not be empty")
	}

	switch strings.ToLower(c.CacheBackend) {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config: redis cache requires METATREE_REDIS_ADDR")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.CacheBackend)
	}
	return nil
}
