package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"revtrack/internal/config"
	"revtrack/internal/logging"
)

func newFileLogger(t *testing.T, format, level string) (*slog.Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), format+".log")
	logger, err := logging.New(logging.Options{Format: format, Level: level, Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func decodeJSONLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &entry); err != nil {
		t.Fatalf("decode json log: %v\n%s", err, line)
	}
	return entry
}

func TestNewFromConfigWritesDailyFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.ToFile = true

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("file message")

	path := logging.DailyLogPath(cfg.Paths.LogDir, time.Now())
	if !strings.Contains(readLog(t, path), "file message") {
		t.Fatalf("expected message in %s", path)
	}
}

func TestOptionsFromConfigOnlyColoursConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = "/var/log/revtrack"
	cfg.Logging.ToFile = true
	day := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)

	opts := logging.OptionsFromConfig(&cfg, day)
	if opts.Color {
		t.Fatal("file logging must not emit colour codes")
	}
	want := []string{"stderr", "/var/log/revtrack/revtrack-2026-03-09.log"}
	if len(opts.Outputs) != 2 || opts.Outputs[0] != want[0] || opts.Outputs[1] != want[1] {
		t.Fatalf("outputs = %v, want %v", opts.Outputs, want)
	}

	if nilOpts := logging.OptionsFromConfig(nil, day); nilOpts.Level != "info" || len(nilOpts.Outputs) != 0 {
		t.Fatalf("unexpected defaults for nil config: %+v", nilOpts)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logger.Info("message without caller")

	content := readLog(t, path)
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("expected no colour codes, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logger, path := newFileLogger(t, "console", "debug")
	logger.Info("message with caller")

	if content := readLog(t, path); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerTagsReviewSubject(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logging.NewComponentLogger(logger, "session").
		With(logging.String(logging.FieldPlaceID, "cid:42"), logging.Int64(logging.FieldSessionID, 7)).
		Warn("early stop suppressed", logging.String(logging.FieldReviewID, "r-1"), logging.Int("batch", 3))
	logging.NewComponentLogger(logger, "syncer").
		Info("pushed", logging.String(logging.FieldPlaceID, "cid:42"), logging.String(logging.FieldTarget, "kafka"))
	logger.Info("plain", logging.String("note", "two words"))

	lines := strings.Split(strings.TrimSpace(readLog(t, path)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", lines)
	}
	if !strings.Contains(lines[0], "WARN session [cid:42 #7/r-1]: early stop suppressed batch=3") {
		t.Fatalf("unexpected session line %q", lines[0])
	}
	if strings.Contains(lines[0], "place_id=") || strings.Contains(lines[0], "component=") {
		t.Fatalf("subject fields should not repeat in the tail: %q", lines[0])
	}
	if !strings.Contains(lines[1], "INFO syncer [cid:42 -> kafka]: pushed") {
		t.Fatalf("unexpected sync line %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], `INFO plain note="two words"`) {
		t.Fatalf("unexpected plain line %q", lines[2])
	}
}

func TestConsoleLoggerFlattensGroups(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logger.WithGroup("counts").Info("session closed", logging.Int("new", 2), slog.Group("sync", logging.Bool("pending", true)))

	if content := readLog(t, path); !strings.Contains(content, "counts.new=2 counts.sync.pending=true") {
		t.Fatalf("expected flattened group keys, got %q", content)
	}
}

func TestJSONLoggerRenamesKeys(t *testing.T) {
	logger, path := newFileLogger(t, "json", "debug")
	logger.Info("json message", logging.String("k", "v"), logging.Duration("elapsed", 1500*time.Millisecond))

	entry := decodeJSONLine(t, readLog(t, path))
	for _, key := range []string{"ts", "level", "msg", "caller", "k"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in %v", key, entry)
		}
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if entry["elapsed"] != "1.5s" {
		t.Fatalf("expected readable duration, got %v", entry["elapsed"])
	}
	if caller, _ := entry["caller"].(string); !strings.HasPrefix(caller, "logger_test.go:") {
		t.Fatalf("expected short caller, got %v", entry["caller"])
	}
}

func TestJSONLoggerClipsLongValues(t *testing.T) {
	logger, path := newFileLogger(t, "json", "info")
	body := strings.Repeat("é", 900)
	logger.Info("long review", logging.String("text", body), logging.Error(errors.New(body)))

	entry := decodeJSONLine(t, readLog(t, path))
	for _, key := range []string{"text", "error"} {
		got, _ := entry[key].(string)
		if !strings.HasSuffix(got, "...(truncated)") || len(got) > 1100 {
			t.Fatalf("expected %s clipped, got %d bytes", key, len(got))
		}
		if !strings.HasPrefix(got, "éé") || strings.ContainsRune(got, '�') {
			t.Fatalf("%s clipped inside a rune", key)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWarnWithContextUsesEventGuidance(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "sync push failed", "sync_failed", logging.String(logging.FieldTarget, "redis"))
	logging.WarnWithContext(logger, "odd", "something_new", logging.String(logging.FieldImpact, "none"))
	logging.ErrorWithContext(logger, "session failed", "session_failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	first := decodeJSONLine(t, lines[0])
	if first[logging.FieldEventType] != "sync_failed" || !strings.Contains(first[logging.FieldErrorHint].(string), "[sync]") {
		t.Fatalf("expected sync guidance, got %v", first)
	}
	if first[logging.FieldImpact] != "the target keeps its previous snapshot of the place" {
		t.Fatalf("impact = %v", first[logging.FieldImpact])
	}
	second := decodeJSONLine(t, lines[1])
	if second[logging.FieldErrorHint] != "check logs for details" || second[logging.FieldImpact] != "none" {
		t.Fatalf("expected fallback hint and caller impact, got %v", second)
	}
	third := decodeJSONLine(t, lines[2])
	if _, ok := third[logging.FieldImpact]; ok {
		t.Fatalf("errors carry no impact default: %v", third)
	}
	if third["level"] != "ERROR" {
		t.Fatalf("level = %v", third["level"])
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = logging.WithRunID(ctx, "run-xyz")
	ctx = logging.WithPlaceID(ctx, "0x1:0x2")
	ctx = logging.WithSessionID(ctx, 42)

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, base).Info("contextual log")

	entry := decodeJSONLine(t, buf.String())
	if entry[logging.FieldRunID] != "run-xyz" {
		t.Fatalf("run_id = %v", entry[logging.FieldRunID])
	}
	if entry[logging.FieldPlaceID] != "0x1:0x2" {
		t.Fatalf("place_id = %v", entry[logging.FieldPlaceID])
	}
	if entry[logging.FieldSessionID] != float64(42) {
		t.Fatalf("session_id = %v", entry[logging.FieldSessionID])
	}
}

func TestCleanupOldLogsAgesDailyFilesByName(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := filepath.Join(dir, "revtrack-2020-01-01.log")
	recent := logging.DailyLogPath(dir, now.AddDate(0, 0, -2))
	today := logging.DailyLogPath(dir, now)
	odd := filepath.Join(dir, "revtrack-manual.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, recent, today, odd, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Modification times are old everywhere; only names decide for daily files.
	past := now.AddDate(0, 0, -30)
	for _, p := range []string{recent, today, odd, other} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chtimes(old, now, now); err != nil {
		t.Fatal(err)
	}

	logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{Dir: dir})

	for _, p := range []string{old, odd} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err=%v", filepath.Base(p), err)
		}
	}
	for _, p := range []string{recent, today, other} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", filepath.Base(p), err)
		}
	}
}

func TestCleanupOldLogsHonoursExclusionsAndZeroDays(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "revtrack-2020-01-01.log")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	logging.CleanupOldLogs(logging.NewNop(), 0, logging.RetentionTarget{Dir: dir})
	logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{Dir: dir, Exclude: []string{old}})

	if _, err := os.Stat(old); err != nil {
		t.Fatalf("expected excluded file kept: %v", err)
	}
}
