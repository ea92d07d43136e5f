// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound            = errors.New("source: recording not found")
	ErrForbidden           = errors.New("source: access forbidden")
	ErrUpstreamUnavailable = errors.New("source: upstream unreachable or transport failure")
	ErrUpstreamError       = errors.New("source: upstream internal error (5xx)")
	ErrBadResponse         = errors.New("source: invalid response format or malformed data")
	ErrInvalidSessionID    = errors.New("source: session id is not a uuid")
	ErrInvalidFileName     = errors.New("source: invalid artifact file name")
	ErrTooLarge            = errors.New("source: artifact exceeds size limit")
)

// UpstreamError wraps a sentinel with request context for logs and
// error chains.
type UpstreamError struct {
	Sentinel  error
	Operation string
	Status    int
	Err       error // nested lower-level error (e.g. net.Error)
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("source: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Sentinel, e.Err}
	}
	return []error{e.Sentinel}
}
