// SPDX-License-Identifier: MIT

// Package config loads the service configuration from METATREE_*
// environment variables and validates it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/metatree-dev/metatree/internal/log"
)

// ParseString reads a string environment variable or returns the default.
// The chosen source is logged for observability; values of keys that look
// sensitive are never logged.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		logDefault(logger, key, defaultValue)
		return defaultValue
	}
	lowerKey := strings.ToLower(key)
	if strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password") {
		logger.Debug().
			Str("key", key).
			Str("source", "environment").
			Bool("sensitive", true).
			Msg("using environment variable")
	} else {
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
	}
	return value
}

// ParseInt reads an integer environment variable, falling back to the
// default on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, strconv.Itoa(defaultValue))
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Int("value", i).
		Str("source", "environment").
		Msg("using environment variable")
	return i
}

// ParseDuration reads a duration in Go syntax (e.g. "30s", "5m").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, defaultValue.String())
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Dur("value", d).
		Str("source", "environment").
		Msg("using environment variable")
	return d
}

// ParseBool reads a boolean environment variable. Accepts the strconv
// forms plus "yes"/"no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, strconv.FormatBool(defaultValue))
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "yes":
		return true
	case "no":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
	return b
}

// ParseStringSlice reads a comma-separated list, trimming whitespace and
// dropping empty elements.
func ParseStringSlice(key string, defaultValue []string) []string {
	v := ParseString(key, "")
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func logDefault(logger zerolog.Logger, key, defaultValue string) {
	logger.Debug().
		Str("key", key).
		Str("default", defaultValue).
		Str("source", "default").
		Msg("using default value")
}
