package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory to prune. Pattern defaults to
// DailyLogPattern; Exclude lists paths that are never removed.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes log files older than retentionDays from each
// target. Daily files are aged by the day in their name, anything else by
// modification time. Today's daily file is always kept. A retentionDays
// value of 0 disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) {
	if retentionDays <= 0 {
		return
	}
	now := time.Now()
	cutoff := now.AddDate(0, 0, -retentionDays)
	today := filepath.Base(DailyLogPath("", now))

	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		pattern := strings.TrimSpace(target.Pattern)
		if pattern == "" {
			pattern = DailyLogPattern
		}
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		keep := excludedPaths(target.Exclude)
		for _, path := range matches {
			name := filepath.Base(path)
			if name == today || keep[absPath(path)] {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			age := info.ModTime()
			if day, ok := dailyLogDay(name); ok {
				// A day's file is complete once the next day starts.
				age = day.AddDate(0, 0, 1)
			}
			if !age.Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", path),
					Error(err),
				)
				continue
			}
			if logger != nil {
				logger.Info("log pruned",
					String("path", path),
					Int("retention_days", retentionDays),
					String(FieldEventType, "log_pruned"),
				)
			}
		}
	}
}

func excludedPaths(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			out[absPath(p)] = true
		}
	}
	return out
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
