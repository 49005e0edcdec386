package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revtrack/internal/config"
	"revtrack/internal/review"
	"revtrack/internal/testsupport"
)

const testPlaceID = "cid:4242"

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.DBPath())

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.configPath); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
}

func TestConfigImportLegacy(t *testing.T) {
	env := setupCLITestEnv(t)
	legacy := filepath.Join(env.baseDir, "legacy.yaml")
	yaml := "db_path: " + filepath.Join(env.baseDir, "legacy", "reviews.db") + "\nstop_threshold: 4\n"
	if err := os.WriteFile(legacy, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write legacy config: %v", err)
	}
	target := filepath.Join(env.baseDir, "imported.toml")

	out, _, err := runCLI(t, []string{"config", "import-legacy", legacy, "--path", target}, "")
	if err != nil {
		t.Fatalf("import-legacy: %v\n%s", err, out)
	}
	requireContains(t, out, "Imported")

	cfg, _, exists, err := config.Load(target)
	if err != nil || !exists {
		t.Fatalf("load imported config: exists=%v err=%v", exists, err)
	}
	if cfg.Collection.StopThreshold != 4 {
		t.Fatalf("expected stop threshold 4, got %d", cfg.Collection.StopThreshold)
	}
}

func TestIngestAndInspectReviews(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.baseDir, "candidates.jsonl")
	testsupport.WriteCandidateLines(t, path, func(i int) int { return i / 2 },
		review.Candidate{ReviewID: "r1", Author: "Ana", Rating: 5, RawDate: "2 weeks ago", Text: "Great coffee", Language: "en"},
		review.Candidate{ReviewID: "r2", Author: "Ben", Rating: 3, RawDate: "a month ago", Text: "Slow service", Language: "en"},
		review.Candidate{ReviewID: "", Author: "nobody"},
	)

	out, _, err := runCLI(t, []string{"ingest", path, "--url", testPlaceURL, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var summary review.ScrapeSession
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.PlaceID != testPlaceID {
		t.Fatalf("expected place %s, got %s", testPlaceID, summary.PlaceID)
	}
	if summary.State != review.SessionClosed || summary.StopReason != review.StopExhausted {
		t.Fatalf("unexpected terminal state %s/%s", summary.State, summary.StopReason)
	}
	if summary.Counts.New != 2 || summary.Counts.Malformed != 1 {
		t.Fatalf("unexpected counts %+v", summary.Counts)
	}

	out, _, err = runCLI(t, []string{"reviews", "list", testPlaceID}, env.configPath)
	if err != nil {
		t.Fatalf("reviews list: %v", err)
	}
	requireContains(t, out, "Ana")
	requireContains(t, out, "Showing 2 of 2")

	out, _, err = runCLI(t, []string{"reviews", "show", testPlaceID, "r2"}, env.configPath)
	if err != nil {
		t.Fatalf("reviews show: %v", err)
	}
	requireContains(t, out, "Slow service")

	out, _, err = runCLI(t, []string{"reviews", "history", testPlaceID, "r1"}, env.configPath)
	if err != nil {
		t.Fatalf("reviews history: %v", err)
	}
	requireContains(t, out, string(review.ChangeCreated))

	out, _, err = runCLI(t, []string{"places"}, env.configPath)
	if err != nil {
		t.Fatalf("places: %v", err)
	}
	requireContains(t, out, testPlaceID)

	out, _, err = runCLI(t, []string{"sessions", "--place", testPlaceID}, env.configPath)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, string(review.SessionClosed))
}

func TestReingestReportsUnchanged(t *testing.T) {
	env := setupCLITestEnv(t)
	path := ingestFixture(t, env)

	out, _, err := runCLI(t, []string{"ingest", path, "--url", testPlaceURL, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	var summary review.ScrapeSession
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Counts.Unchanged != 3 || summary.Counts.New != 0 {
		t.Fatalf("expected all unchanged, got %+v", summary.Counts)
	}
}

func TestHideAndRestoreReview(t *testing.T) {
	env := setupCLITestEnv(t)
	ingestFixture(t, env)

	out, _, err := runCLI(t, []string{"reviews", "hide", testPlaceID, "r1"}, env.configPath)
	if err != nil {
		t.Fatalf("hide: %v", err)
	}
	requireContains(t, out, string(review.StatusSoftDeleted))

	out, _, err = runCLI(t, []string{"reviews", "list", testPlaceID}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "Ana") {
		t.Fatalf("hidden review still listed:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"reviews", "restore", testPlaceID, "r1"}, env.configPath)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	requireContains(t, out, string(review.StatusActive))

	if _, _, err := runCLI(t, []string{"reviews", "hide", testPlaceID, "missing"}, env.configPath); !errors.Is(err, review.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryPruneDryRun(t *testing.T) {
	env := setupCLITestEnv(t)
	ingestFixture(t, env)

	out, _, err := runCLI(t, []string{"history", "prune", "--older-than-days", "30", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, out, "0 history rows are older than 30 days")
}

func TestHistoryPruneRequiresConfirmation(t *testing.T) {
	env := setupCLITestEnv(t)
	ingestFixture(t, env)

	// A zero-day threshold makes every row eligible.
	_, _, err := runCLI(t, []string{"history", "prune", "--older-than-days", "0"}, env.configPath)
	if !errors.Is(err, errNotConfirmed) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
}

func TestExportCSVToFile(t *testing.T) {
	env := setupCLITestEnv(t)
	ingestFixture(t, env)
	target := filepath.Join(env.baseDir, "out", "reviews.csv")

	_, stderr, err := runCLI(t, []string{"export", testPlaceID, "--format", "csv", "--output", target}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, stderr, "Exported 3 reviews")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
	}
	requireContains(t, lines[0], "text_en")
	requireContains(t, lines[0], "text_es")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"export", testPlaceID, "--format", "xml"}, env.configPath); err == nil {
		t.Fatal("expected unknown format to fail")
	}
}

func TestSyncRunWritesSnapshot(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithTargets(config.TargetJSON))
	ingestFixture(t, env)

	out, _, err := runCLI(t, []string{"sync", "pending", testPlaceID, config.TargetJSON}, env.configPath)
	if err != nil {
		t.Fatalf("sync pending: %v", err)
	}
	requireContains(t, out, "3 reviews pending")

	out, _, err = runCLI(t, []string{"sync", "run"}, env.configPath)
	if err != nil {
		t.Fatalf("sync run: %v\n%s", err, out)
	}
	requireContains(t, out, testPlaceID)

	snapshot := filepath.Join(env.cfg.Paths.SnapshotDir, "cid_4242.json")
	if _, err := os.Stat(snapshot); err != nil {
		t.Fatalf("expected snapshot at %s: %v", snapshot, err)
	}

	out, _, err = runCLI(t, []string{"sync", "pending", testPlaceID, config.TargetJSON}, env.configPath)
	if err != nil {
		t.Fatalf("sync pending after run: %v", err)
	}
	requireContains(t, out, "0 reviews pending")

	out, _, err = runCLI(t, []string{"sync", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("sync status: %v", err)
	}
	requireContains(t, out, string(review.SyncOK))
}

func TestPlacesPurge(t *testing.T) {
	env := setupCLITestEnv(t)
	ingestFixture(t, env)

	out, _, err := runCLI(t, []string{"places", "purge", testPlaceID, "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("purge dry run: %v", err)
	}
	requireContains(t, out, "3 reviews")
	requireContains(t, out, "Dry run")

	out, _, err = runCLI(t, []string{"places", "purge", testPlaceID, "--yes"}, env.configPath)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	requireContains(t, out, "Purged place")

	out, _, err = runCLI(t, []string{"reviews", "list", testPlaceID}, env.configPath)
	if err != nil {
		t.Fatalf("list after purge: %v", err)
	}
	requireContains(t, out, "Showing 0 of 0")
}

func TestStatsAndHealth(t *testing.T) {
	env := setupCLITestEnv(t)
	ingestFixture(t, env)

	out, _, err := runCLI(t, []string{"stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "reviews 3")

	out, _, err = runCLI(t, []string{"db", "health"}, env.configPath)
	if err != nil {
		t.Fatalf("db health: %v\n%s", err, out)
	}
	requireContains(t, out, "Integrity:    ok")

	out, _, err = runCLI(t, []string{"db", "vacuum"}, env.configPath)
	if err != nil {
		t.Fatalf("db vacuum: %v", err)
	}
	requireContains(t, out, "Vacuumed")
}
