package review

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSourceReference marks a source URL that cannot be parsed or
	// resolved to a place. Callers must not retry.
	ErrInvalidSourceReference = errors.New("invalid source reference")
	// ErrWriteConflict marks an optimistic-concurrency collision that outlived
	// the bounded internal retries.
	ErrWriteConflict = errors.New("write conflict")
	// ErrStoreBusy marks lock contention that outlived the bounded backoff.
	ErrStoreBusy = errors.New("store busy")
	// ErrMalformedCandidate marks a candidate record that fails validation.
	ErrMalformedCandidate = errors.New("malformed candidate")
	// ErrStoreUnavailable marks a storage failure that ends the current session.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrSchemaMismatch   = errors.New("schema version mismatch")
	ErrNotFound         = errors.New("not found")
	ErrSessionClosed    = errors.New("session closed")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStoreUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short stable name for the error's marker, used as the
// error_kind log attribute and in CLI output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSourceReference):
		return "invalid_source_reference"
	case errors.Is(err, ErrWriteConflict):
		return "write_conflict"
	case errors.Is(err, ErrStoreBusy):
		return "store_busy"
	case errors.Is(err, ErrMalformedCandidate):
		return "malformed_candidate"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	default:
		return "internal"
	}
}

// Retryable reports whether the caller may retry the operation that failed.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreBusy) || errors.Is(err, ErrWriteConflict)
}

// Fatal reports whether err must end the current collection session.
func Fatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrSchemaMismatch)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "review engine failure"
	}
	return strings.Join(parts, ": ")
}
