package erpapi

import (
	"errors"
	"fmt"
	"net/http"
)

// The whole identity layer hangs on keeping these two failure classes apart:
// an explicit rejection means the token (or credentials) are bad and must be
// discarded; an unreachable service means nothing is known and the token must
// be kept.
var (
	// ErrAuthRejected marks an explicit 401/403 from the upstream API.
	ErrAuthRejected = errors.New("erpapi: authentication rejected")
	// ErrUnreachable marks a connectivity or timeout failure before any
	// upstream verdict was received.
	ErrUnreachable = errors.New("erpapi: service unreachable")
	// ErrRemote marks any other non-2xx upstream response.
	ErrRemote = errors.New("erpapi: upstream error")
)

// statusError classifies a non-2xx upstream status.
func statusError(op string, status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if message != "" {
			return fmt.Errorf("%s: %s: %w", op, message, ErrAuthRejected)
		}
		return fmt.Errorf("%s: %w", op, ErrAuthRejected)
	default:
		if message != "" {
			return fmt.Errorf("%s: status %d: %s: %w", op, status, message, ErrRemote)
		}
		return fmt.Errorf("%s: status %d: %w", op, status, ErrRemote)
	}
}

// transportError classifies a round-trip failure. Anything that prevented an
// upstream verdict counts as unreachable, never as rejection.
func transportError(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrUnreachable)
}
