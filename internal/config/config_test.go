// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	t.Setenv("METATREE_TEST_STR", "hello")
	assert.Equal(t, "hello", ParseString("METATREE_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", ParseString("METATREE_TEST_UNSET", "fallback"))

	t.Setenv("METATREE_TEST_EMPTY", "")
	assert.Equal(t, "fallback", ParseString("METATREE_TEST_EMPTY", "fallback"))
}

func TestParseInt(t *testing.T) {
	t.Setenv("METATREE_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("METATREE_TEST_INT", 7))

	t.Setenv("METATREE_TEST_BAD_INT", "forty-two")
	assert.Equal(t, 7, ParseInt("METATREE_TEST_BAD_INT", 7))
	assert.Equal(t, 7, ParseInt("METATREE_TEST_UNSET", 7))
}

func TestParseDuration(t *testing.T) {
	t.Setenv("METATREE_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, ParseDuration("METATREE_TEST_DUR", time.Minute))

	t.Setenv("METATREE_TEST_BAD_DUR", "soon")
	assert.Equal(t, time.Minute, ParseDuration("METATREE_TEST_BAD_DUR", time.Minute))
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"0", false},
		{"NO", false},
	}
	for _, tt := range tests {
		t.Setenv("METATREE_TEST_BOOL", tt.value)
		assert.Equal(t, tt.want, ParseBool("METATREE_TEST_BOOL", !tt.want), "value %q", tt.value)
	}

	t.Setenv("METATREE_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("METATREE_TEST_BOOL", true))
}

func TestParseStringSlice(t *testing.T) {
	t.Setenv("METATREE_TEST_LIST", "eawag_soil, eawag_bbd ,,")
	assert.Equal(t, []string{"eawag_soil", "eawag_bbd"}, ParseStringSlice("METATREE_TEST_LIST", nil))

	assert.Equal(t, []string{"a"}, ParseStringSlice("METATREE_TEST_UNSET", []string{"a"}))
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "https://envipath.org", cfg.EnviPathHost)
	assert.Equal(t, []string{"eawag_soil", "eawag_sludge", "eawag_bbd"}, cfg.Packages)
	assert.Equal(t, 0, cfg.FetchLimit)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("METATREE_LISTEN", ":9090")
	t.Setenv("METATREE_PACKAGES", "eawag_soil")
	t.Setenv("METATREE_FETCH_LIMIT", "25")
	t.Setenv("METATREE_CACHE_BACKEND", "redis")
	t.Setenv("METATREE_REDIS_ADDR", "redis:6379")
	t.Setenv("METATREE_LOG_LEVEL", "debug")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, []string{"eawag_soil"}, cfg.Packages)
	assert.Equal(t, 25, cfg.FetchLimit)
	assert.Equal(t, CacheRedis, cfg.CacheBackend)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		return AppConfig{
			ListenAddr:    ":8080",
			EnviPathHost:  "https://envipath.org",
			Packages:      []string{"eawag_soil"},
			RetryAttempts: 5,
			DataDir:       "./data",
			CacheBackend:  CacheMemory,
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"empty listen", func(c *AppConfig) { c.ListenAddr = "" }},
		{"bad scheme", func(c *AppConfig) { c.EnviPathHost = "ftp://envipath.org" }},
		{"no host", func(c *AppConfig) { c.EnviPathHost = "https://" }},
		{"no packages", func(c *AppConfig) { c.Packages = nil }},
		{"negative limit", func(c *AppConfig) { c.FetchLimit = -1 }},
		{"zero attempts", func(c *AppConfig) { c.RetryAttempts = 0 }},
		{"empty data dir", func(c *AppConfig) { c.DataDir = "" }},
		{"unknown cache", func(c *AppConfig) { c.CacheBackend = "memcached" }},
		{"redis without addr", func(c *AppConfig) {
			c.CacheBackend = CacheRedis
			c.RedisAddr = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
