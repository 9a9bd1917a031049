// SPDX-License-Identifier: MIT

package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stdout)
	Service string    // optional service name attached to every log entry
}

var (
	mu   sync.RWMutex
	base zerolog.Logger
)

// Configure rebuilds the global base logger from cfg. The package starts
// with a working default logger, so callers may log before Configure runs;
// calling it again, e.g. once the configuration is loaded, replaces the
// level, writer and service fields.
func Configure(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}
	service := cfg.Service
	if service == "" {
		service = "metatree"
	}

	l := zerolog.New(writer).With().
		Timestamp().
		Str("service", service).
		Logger()

	mu.Lock()
	base = l
	mu.Unlock()
}

// Base returns the current base logger instance.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

func init() {
	Configure(Config{})
}
