// Package logging assembles structured slog loggers and formatting helpers used
// across revtrack.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so store and session code can
// tag log lines with run, place and session identifiers. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
