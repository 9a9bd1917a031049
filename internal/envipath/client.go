// SPDX-License-Identifier: MIT

// Package envipath is the client for the enviPath REST API, the upstream
// source of biodegradation reaction records.
package envipath

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xglog "github.com/metatree-dev/metatree/internal/log"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 5
	defaultBackoff  = 1 * time.Second
	maxBackoff      = 60 * time.Second
)

// Client talks to one enviPath host.
type Client struct {
	base     string
	http     *http.Client
	breaker  *CircuitBreaker
	attempts int
	backoff  time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetry sets the retry budget: attempts and initial backoff. Backoff
// doubles per attempt, capped at one minute.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// New creates a client for the given enviPath host.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:     strings.TrimRight(base, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		breaker:  NewCircuitBreaker(5, 30*time.Second),
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the configured host URL.
func (c *Client) Base() string { return c.base }

// ReactionRef is one entry of a package reaction listing.
type ReactionRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReactionRefs lists the reactions of a package. packageURL may be absolute
// or a path below the client host.
func (c *Client) ReactionRefs(ctx context.Context, packageURL string) ([]ReactionRef, error) {
	var payload struct {
		Reactions []ReactionRef `json:"reaction"`
	}
	if err := c.getJSON(ctx, "list reactions", c.resolve(packageURL)+"/reaction", &payload); err != nil {
		return nil, err
	}
	return payload.Reactions, nil
}

// Reaction fetches one full reaction record as raw JSON.
func (c *Client) Reaction(ctx context.Context, reactionURL string) (json.RawMessage, error) {
	var payload json.RawMessage
	if err := c.getJSON(ctx, "get reaction", c.resolve(reactionURL), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) resolve(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return strings.TrimRight(u, "/")
	}
	return c.base + "/" + strings.Trim(u, "/")
}

// getJSON performs a GET with breaker, retry and status classification.
func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	logger := xglog.WithComponentFromContext(ctx, "envipath")

	var lastErr error
	backoff := c.backoff
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err := c.breaker.Execute(func() error {
			return c.doGetJSON(ctx, op, url, out)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		logger.Warn().
			Err(err).
			Str("event", "upstream.retry").
			Str("url", url).
			Int("attempt", attempt).
			Msg("upstream request failed, backing off")

		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return lastErr
}

func (c *Client) doGetJSON(ctx context.Context, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		sentinel := ErrUpstreamUnavailable
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			sentinel = ErrTimeout
		}
		return &APIError{Sentinel: sentinel, Operation: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		sentinel := ErrBadResponse
		switch {
		case res.StatusCode == http.StatusNotFound:
			sentinel = ErrNotFound
		case res.StatusCode == http.StatusForbidden, res.StatusCode == http.StatusUnauthorized:
			sentinel = ErrForbidden
		case res.StatusCode >= 500:
			sentinel = ErrUpstreamError
		}
		return &APIError{Sentinel: sentinel, Operation: op, Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &APIError{Sentinel: ErrBadResponse, Operation: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// retryable reports whether the request should be attempted again:
// transport failures, timeouts and upstream 5xx responses.
func retryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUpstreamError)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
