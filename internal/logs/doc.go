// Package logs reads revtrack's daily log files for the `revtrack logs`
// command: the last N lines of the newest file, then optional polling for
// lines appended after a byte offset.
package logs
