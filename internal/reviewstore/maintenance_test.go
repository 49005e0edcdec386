package reviewstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"revtrack/internal/review"
	"revtrack/internal/testsupport"
)

func TestPruneHistoryRespectsHorizon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := testsupport.NewClock()
	store := openWithClock(t, cfg, clock.Now)
	ctx := context.Background()
	testsupport.NewPlace(t, store, "p1")

	old := testsupport.OpenSession(t, store, "p1", review.ModeUpdate)
	mustUpsert(t, store, "p1", testsupport.Candidate("r1"), review.ModeUpdate, old.ID)
	testsupport.CloseSession(t, store, old.ID)
	oldRows, err := store.SessionHistory(ctx, old.ID)
	if err != nil {
		t.Fatalf("SessionHistory failed: %v", err)
	}

	clock.Advance(60 * 24 * time.Hour)
	recent := testsupport.OpenSession(t, store, "p1", review.ModeUpdate)
	mustUpsert(t, store, "p1", testsupport.Candidate("r2"), review.ModeUpdate, recent.ID)
	testsupport.CloseSession(t, store, recent.ID)

	preview, err := store.PruneHistory(ctx, 30, true)
	if err != nil {
		t.Fatalf("PruneHistory dry run failed: %v", err)
	}
	if preview != int64(len(oldRows)) {
		t.Fatalf("dry run reported %d rows, want %d", preview, len(oldRows))
	}
	left, err := store.SessionHistory(ctx, old.ID)
	if err != nil {
		t.Fatalf("SessionHistory failed: %v", err)
	}
	if len(left) != len(oldRows) {
		t.Fatal("dry run must not delete")
	}

	removed, err := store.PruneHistory(ctx, 30, false)
	if err != nil {
		t.Fatalf("PruneHistory failed: %v", err)
	}
	if removed != preview {
		t.Fatalf("removed %d rows, preview said %d", removed, preview)
	}
	if _, err := store.GetReview(ctx, "p1", "r1"); err != nil {
		t.Fatalf("pruning must keep the review row: %v", err)
	}
	kept, err := store.SessionHistory(ctx, recent.ID)
	if err != nil {
		t.Fatalf("SessionHistory failed: %v", err)
	}
	if len(kept) == 0 {
		t.Fatal("recent history should survive")
	}
	if _, err := store.PruneHistory(ctx, -1, true); err == nil {
		t.Fatal("expected error for negative retention")
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewPlace(t, store, "p1")
	testsupport.NewPlace(t, store, "p2")
	session := testsupport.OpenSession(t, store, "p1", review.ModeUpdate)
	for _, c := range testsupport.Candidates("r", 2) {
		mustUpsert(t, store, "p1", c, review.ModeUpdate, session.ID)
	}
	testsupport.CloseSession(t, store, session.ID)

	stats, err := store.Stats(ctx, 5)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Counts.Places != 2 || stats.Counts.Reviews != 2 || stats.Counts.Sessions != 1 {
		t.Fatalf("unexpected counts: %#v", stats.Counts)
	}
	if len(stats.Places) != 2 || stats.Places[0].ActiveReviews != 2 {
		t.Fatalf("unexpected per-place stats: %#v", stats.Places)
	}
	if len(stats.RecentSessions) != 1 || stats.DBBytes == 0 {
		t.Fatalf("unexpected recent sessions or size: %#v", stats)
	}
	if !stats.Schema.Current() {
		t.Fatalf("schema should be current: %#v", stats.Schema)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.Healthy() {
		t.Fatalf("expected healthy store: %#v", health)
	}
	if err := store.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}
}

func TestPurgePlace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewPlace(t, store, "p1")
	testsupport.NewPlace(t, store, "p2")
	session := testsupport.OpenSession(t, store, "p1", review.ModeUpdate)
	for _, c := range testsupport.Candidates("r", 2) {
		mustUpsert(t, store, "p1", c, review.ModeUpdate, session.ID)
	}
	testsupport.CloseSession(t, store, session.ID)
	if err := store.Advance(ctx, "p1", "json", session.ID); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	preview, err := store.PurgePlace(ctx, "p1", true)
	if err != nil {
		t.Fatalf("PurgePlace dry run failed: %v", err)
	}
	if preview.Reviews != 2 || preview.Aliases != 1 || preview.Sessions != 1 || preview.Checkpoints != 1 || preview.History == 0 {
		t.Fatalf("unexpected preview: %#v", preview)
	}
	if _, err := store.GetPlace(ctx, "p1"); err != nil {
		t.Fatalf("dry run must not purge: %v", err)
	}

	report, err := store.PurgePlace(ctx, "p1", false)
	if err != nil {
		t.Fatalf("PurgePlace failed: %v", err)
	}
	if report.Reviews != preview.Reviews || report.History != preview.History {
		t.Fatalf("report %#v differs from preview %#v", report, preview)
	}
	if _, err := store.GetPlace(ctx, "p1"); !errors.Is(err, review.ErrNotFound) {
		t.Fatalf("expected place gone, got %v", err)
	}
	stats, err := store.Stats(ctx, 0)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Counts.Places != 1 || stats.Counts.Reviews != 0 || stats.Counts.History != 0 || stats.Counts.Aliases != 1 {
		t.Fatalf("purge left rows behind: %#v", stats.Counts)
	}
	if _, err := store.PurgePlace(ctx, "p1", true); !errors.Is(err, review.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for purged place, got %v", err)
	}
}
