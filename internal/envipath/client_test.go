// SPDX-License-Identifier: MIT

package envipath

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionRefs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/package/abc/reaction", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reaction":[
			{"id":"` + r.Host + `/reaction/1","name":"hydrolysis"},
			{"id":"` + r.Host + `/reaction/2","name":"oxidation"}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL)
	refs, err := client.ReactionRefs(context.Background(), server.URL+"/package/abc")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "hydrolysis", refs[0].Name)
	assert.Equal(t, "oxidation", refs[1].Name)
}

func TestReactionRefsStatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"unauthorized", http.StatusUnauthorized, ErrForbidden},
		{"teapot", http.StatusTeapot, ErrBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			client := New(server.URL, WithRetry(1, time.Millisecond))
			_, err := client.ReactionRefs(context.Background(), server.URL+"/package/abc")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reaction":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, WithRetry(5, time.Millisecond))
	refs, err := client.ReactionRefs(context.Background(), server.URL+"/package/abc")
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, WithRetry(5, time.Millisecond))
	_, err := client.ReactionRefs(context.Background(), server.URL+"/package/abc")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, WithRetry(3, time.Millisecond))
	_, err := client.ReactionRefs(context.Background(), server.URL+"/package/abc")
	require.ErrorIs(t, err, ErrUpstreamError)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONContextCancellationDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := New(server.URL, WithRetry(5, 10*time.Second))
	_, err := client.ReactionRefs(ctx, server.URL+"/package/abc")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolve(t *testing.T) {
	client := New("https://envipath.org/")

	assert.Equal(t, "https://envipath.org/package/abc", client.resolve("package/abc"))
	assert.Equal(t, "https://envipath.org/package/abc", client.resolve("/package/abc/"))
	assert.Equal(t, "https://other.example/reaction/1", client.resolve("https://other.example/reaction/1/"))
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)
	fail := errors.New("fail")

	require.Error(t, cb.Execute(func() error { return fail }))
	assert.Equal(t, StateClosed, cb.State())
	require.Error(t, cb.Execute(func() error { return fail }))
	assert.Equal(t, StateOpen, cb.State())

	// open: calls are rejected without running fn
	err := cb.Execute(func() error {
		t.Fatal("fn must not run while open")
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)

	// after the reset timeout a probe is allowed and success closes the circuit
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	fail := errors.New("fail")

	require.Error(t, cb.Execute(func() error { return fail }))
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.Error(t, cb.Execute(func() error { return fail }))
	assert.Equal(t, StateOpen, cb.State())
}
