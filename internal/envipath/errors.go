// SPDX-License-Identifier: MIT

package envipath

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound            = errors.New("envipath: resource not found")
	ErrForbidden           = errors.New("envipath: access forbidden")
	ErrUpstreamUnavailable = errors.New("envipath: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("envipath: internal error (5xx)")
	ErrBadResponse         = errors.New("envipath: invalid response format or malformed data")
	ErrTimeout             = errors.New("envipath: request timed out")

	// ErrLimitExceeded reports an invalid extraction limit.
	ErrLimitExceeded = errors.New("envipath: limit must be a positive integer or zero")
	// ErrUnknownPackage reports a package key missing from the registry.
	ErrUnknownPackage = errors.New("envipath: unknown package")
)

// APIError wraps the sentinel errors with request context.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("envipath: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}
