package reviewstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"revtrack/internal/review"
)

const (
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLite primary result codes.
const (
	sqliteIOErr    = 10
	sqliteCorrupt  = 11
	sqliteBusy     = 5
	sqliteLocked   = 6
	sqliteReadOnly = 8
	sqliteFull     = 13
	sqliteCantOpen = 14
	sqliteNotADB   = 26
)

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code() & 0xff, true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && (code == sqliteBusy || code == sqliteLocked) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUnavailable(err error) bool {
	if code, ok := sqliteCode(err); ok {
		switch code {
		case sqliteIOErr, sqliteCorrupt, sqliteReadOnly, sqliteFull, sqliteCantOpen, sqliteNotADB:
			return true
		}
	}
	return strings.Contains(err.Error(), "sql: database is closed")
}

// retryOnBusy reruns op while SQLite reports lock contention, doubling the
// delay between attempts up to busyRetryMaxBackoff.
func retryOnBusy(ctx context.Context, attempts int, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// classifyError maps driver failures onto the review error taxonomy. Errors
// that already carry a marker pass through untouched.
func classifyError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case review.Kind(err) != "internal":
		return err
	case isSQLiteBusy(err):
		return review.Wrap(review.ErrStoreBusy, component, op, "database locked", err)
	case isUnavailable(err):
		return review.Wrap(review.ErrStoreUnavailable, component, op, "", err)
	default:
		return fmt.Errorf("%s: %s: %w", component, op, err)
	}
}
