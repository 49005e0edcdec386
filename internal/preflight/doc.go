// Package preflight provides readiness checks for the filesystem paths and
// sync targets revtrack depends on.
//
// The CLI runs RunAll before ingest and sync runs, and "revtrack db health"
// prints the results next to the store health report. Target checks are
// gated by the configured sync targets; disabled targets are skipped.
package preflight
