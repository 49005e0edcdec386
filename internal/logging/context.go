package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the correlation identifier of one CLI invocation or ingest run.
	FieldRunID = "run_id"
	// FieldPlaceID identifies the place a log line concerns.
	FieldPlaceID = "place_id"
	// FieldReviewID identifies the review a log line concerns.
	FieldReviewID = "review_id"
	// FieldSessionID identifies the collection session.
	FieldSessionID = "session_id"
	// FieldTarget names a downstream sync target.
	FieldTarget = "target"
	// FieldEventType is a stable machine-readable name for the event being logged.
	FieldEventType = "event_type"
	// FieldErrorKind carries review.Kind of a logged error.
	FieldErrorKind = "error_kind"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	placeIDKey   contextKey = "place_id"
	sessionIDKey contextKey = "session_id"
)

// WithRunID stores the run correlation identifier on the context.
func WithRunID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier from the context, if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// WithPlaceID stores the place identifier on the context.
func WithPlaceID(ctx context.Context, placeID string) context.Context {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return ctx
	}
	return context.WithValue(ctx, placeIDKey, placeID)
}

// PlaceIDFromContext extracts the place identifier from the context, if present.
func PlaceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(placeIDKey).(string)
	return id, ok && id != ""
}

// WithSessionID stores the collection session identifier on the context.
func WithSessionID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session identifier from the context, if present.
func SessionIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(sessionIDKey).(int64)
	return id, ok && id > 0
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if id, ok := PlaceIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPlaceID, id))
	}
	if id, ok := SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldSessionID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return logger.With(args...)
}
