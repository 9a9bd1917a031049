// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	xglog "github.com/metatree-dev/metatree/internal/log"
)

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware assigns every request a correlation ID, honoring one
// supplied by the client.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(xglog.ContextWithRequestID(r.Context(), id)))
	})
}

// requestLogger emits one structured entry per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		logger := xglog.WithComponent("api")
		logger.Info().
			Str("event", "http.request").
			Str(xglog.FieldRequestID, xglog.RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str(xglog.FieldPath, r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// rateLimit builds a sliding-window limiter keyed by client IP with a JSON
// 429 response.
func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`))
		}),
	)
}

// refreshRateLimit guards the expensive pipeline trigger.
func refreshRateLimit() func(http.Handler) http.Handler {
	return rateLimit(10, time.Minute)
}

// searchRateLimit guards substructure search, which walks the whole index.
func searchRateLimit() func(http.Handler) http.Handler {
	return rateLimit(120, time.Minute)
}
