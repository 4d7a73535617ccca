package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy. Every failure leaving this package wraps exactly one of
// these (ErrIntegrity additionally wraps ErrNotFound), so callers branch with
// errors.Is instead of string matching.
var (
	// ErrValidation marks client-fault input: missing title or file, or a
	// file without usable rows.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers both absence and non-ownership on reads, so a
	// non-owner cannot probe for existence.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is used where existence is already revealed (deletion).
	ErrForbidden = errors.New("permission denied")

	// ErrIntegrity marks a broken system invariant, e.g. a user without a
	// character row.
	ErrIntegrity = errors.New("integrity fault")

	// ErrStore marks a failed store operation. The owning transaction has
	// been rolled back; retrying is up to the caller.
	ErrStore = errors.New("store failure")

	// ErrCharacterConflict is returned when a character row changed between
	// lock and update.
	ErrCharacterConflict = errors.New("character was modified concurrently")
)

// Specific validation failures.
var (
	ErrTitleRequired  = fmt.Errorf("%w: word set title is required", ErrValidation)
	ErrNoFile         = fmt.Errorf("%w: no file provided", ErrValidation)
	ErrFileTooLarge   = fmt.Errorf("%w: file too large", ErrValidation)
	ErrNegativeAmount = fmt.Errorf("%w: amount must not be negative", ErrValidation)
	ErrAmountTooLarge = fmt.Errorf("%w: amount too large", ErrValidation)
)

// Invalidf returns an ErrValidation with a formatted detail message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storeErr wraps err as ErrStore unless it already carries a taxonomy
// sentinel or a context error.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrCharacterConflict, ErrValidation, ErrForbidden, ErrIntegrity, ErrStore} {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// StatusCode maps an error to the HTTP status a transport should use.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrIntegrity):
		return http.StatusInternalServerError
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrCharacterConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTooManyUploads):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
