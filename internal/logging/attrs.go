package logging

import (
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error returns the conventional "error" attribute.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

type eventGuidance struct {
	hint   string
	impact string
}

// eventDefaults fills error_hint and impact for the warning and error events
// revtrack emits when the call site does not supply its own.
var eventDefaults = map[string]eventGuidance{
	"write_section_busy": {
		hint:   "another revtrack process holds the store; let it finish or raise store.busy_timeout_ms",
		impact: "the write is retried or the batch redelivered",
	},
	"batch_retry": {
		hint:   "another revtrack process holds the store",
		impact: "only the unprocessed remainder of the batch is redelivered",
	},
	"early_stop_guard": {
		hint:   "collection.min_batch_size keeps small all-unchanged batches from ending a run",
		impact: "collection continues past an unchanged batch",
	},
	"mark_missing_failed": {
		hint:   "rerun the ingest once the store is healthy",
		impact: "reviews absent from this run keep their previous status",
	},
	"session_failed": {
		hint:   "inspect the session with revtrack history session <id>",
		impact: "reviews written before the failure are kept",
	},
	"redirect_failed": {
		hint:   "pass the canonical place URL or check network access",
		impact: "place identity is derived from the URL as given",
	},
	"sync_failed": {
		hint:   "check the target settings under [sync] and rerun revtrack sync run",
		impact: "the target keeps its previous snapshot of the place",
	},
	"preflight_failed": {
		hint:   "run revtrack db health for details",
		impact: "the command continues without the failed dependency",
	},
	"metrics_write_failed": {
		hint:   "check that the metrics path is writable",
		impact: "session metrics are not exported",
	},
	"log_retention_failed": {
		hint:   "check file permissions and log_dir ownership",
		impact: "old log file remains on disk",
	},
}

const fallbackHint = "check logs for details"

func hasKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// withEventFields tags attrs with eventType and any missing guidance.
// The impact default is only added when withImpact is set.
func withEventFields(attrs []Attr, eventType string, withImpact bool) []any {
	guide, known := eventDefaults[eventType]
	if !known {
		guide = eventGuidance{hint: fallbackHint, impact: "operation completed with warnings"}
	}
	args := make([]any, 0, len(attrs)+3)
	for _, a := range attrs {
		args = append(args, a)
	}
	if !hasKey(attrs, FieldEventType) {
		args = append(args, String(FieldEventType, eventType))
	}
	if !hasKey(attrs, FieldErrorHint) {
		args = append(args, String(FieldErrorHint, guide.hint))
	}
	if withImpact && !hasKey(attrs, FieldImpact) {
		args = append(args, String(FieldImpact, guide.impact))
	}
	return args
}

// WarnWithContext logs a warning carrying event_type, error_hint and impact.
// Fields absent from attrs are taken from the event's registered guidance.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Warn(msg, withEventFields(attrs, eventType, true)...)
}

// ErrorWithContext logs an error carrying event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Error(msg, withEventFields(attrs, eventType, false)...)
}
