package reviewstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"revtrack/internal/config"
	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
	"revtrack/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	schema, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if !schema.Current() || schema.Version == 0 {
		t.Fatalf("unexpected schema state: %#v", schema)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	reopened, err := reviewstore.Open(cfg, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
}

func setSchemaVersion(t *testing.T, path string, version int, dirty bool) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`UPDATE schema_migrations SET version = ?, dirty = ?`, version, dirty); err != nil {
		t.Fatalf("update schema_migrations: %v", err)
	}
}

func TestOpenRejectsUnknownSchema(t *testing.T) {
	cases := []struct {
		name    string
		version int
		dirty   bool
	}{
		{name: "newer", version: 99},
		{name: "dirty", version: 1, dirty: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			store, err := reviewstore.Open(cfg, nil)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			store.Close()

			setSchemaVersion(t, cfg.DBPath(), tc.version, tc.dirty)

			_, err = reviewstore.Open(cfg, nil)
			if !errors.Is(err, review.ErrSchemaMismatch) {
				t.Fatalf("expected ErrSchemaMismatch, got %v", err)
			}
		})
	}
}

func TestRegisterPlaceIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	place := review.Place{PlaceID: "cid:42", CanonicalURL: "https://maps.example.com/?cid=42"}
	first := review.PlaceAlias{AliasKey: "k1", SourceURL: "https://maps.example.com/?cid=42", CanonicalURL: place.CanonicalURL}
	second := review.PlaceAlias{AliasKey: "k2", SourceURL: "https://goo.example/abc", CanonicalURL: "https://goo.example/abc"}

	placeCreated, aliasCreated, err := store.RegisterPlace(ctx, place, first)
	if err != nil || !placeCreated || !aliasCreated {
		t.Fatalf("first register: created=%v/%v err=%v", placeCreated, aliasCreated, err)
	}
	placeCreated, aliasCreated, err = store.RegisterPlace(ctx, place, second)
	if err != nil || placeCreated || !aliasCreated {
		t.Fatalf("second register: created=%v/%v err=%v", placeCreated, aliasCreated, err)
	}
	placeCreated, aliasCreated, err = store.RegisterPlace(ctx, place, second)
	if err != nil || placeCreated || aliasCreated {
		t.Fatalf("repeat register: created=%v/%v err=%v", placeCreated, aliasCreated, err)
	}

	places, err := store.ListPlaces(ctx)
	if err != nil {
		t.Fatalf("ListPlaces failed: %v", err)
	}
	if len(places) != 1 {
		t.Fatalf("expected one place, got %d", len(places))
	}
	aliases, err := store.PlaceAliases(ctx, place.PlaceID)
	if err != nil {
		t.Fatalf("PlaceAliases failed: %v", err)
	}
	if len(aliases) != 2 {
		t.Fatalf("expected two aliases, got %d", len(aliases))
	}

	found, err := store.ResolveAlias(ctx, "k2")
	if err != nil || found == nil || found.PlaceID != place.PlaceID {
		t.Fatalf("ResolveAlias = %#v, %v", found, err)
	}
	missing, err := store.ResolveAlias(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil alias for unknown key, got %#v, %v", missing, err)
	}
}

func TestUpdatePlaceDetails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewPlace(t, store, "p1")

	lat, lng := 52.52, 13.405
	if err := store.UpdatePlaceDetails(ctx, "p1", "Cafe Mitte", &lat, &lng); err != nil {
		t.Fatalf("UpdatePlaceDetails failed: %v", err)
	}
	if err := store.UpdatePlaceDetails(ctx, "p1", "", nil, nil); err != nil {
		t.Fatalf("UpdatePlaceDetails (no-op) failed: %v", err)
	}
	place, err := store.GetPlace(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlace failed: %v", err)
	}
	if place.Name != "Cafe Mitte" || place.Latitude == nil || *place.Latitude != lat {
		t.Fatalf("unexpected place: %#v", place)
	}
	if err := store.UpdatePlaceDetails(ctx, "missing", "x", nil, nil); !errors.Is(err, review.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewPlace(t, store, "p1")

	if _, err := store.OpenSession(ctx, reviewstore.SessionSpec{PlaceID: "unknown"}); !errors.Is(err, review.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown place, got %v", err)
	}

	session := testsupport.OpenSession(t, store, "p1", review.ModeUpdate)
	if err := store.RecordSessionProgress(ctx, session.ID, review.Counts{New: 2}); err != nil {
		t.Fatalf("RecordSessionProgress failed: %v", err)
	}
	finished, err := store.FinishSession(ctx, session.ID, reviewstore.SessionEnd{
		State:      review.SessionClosed,
		StopReason: review.StopThresholdReached,
		Counts:     review.Counts{New: 3, Unchanged: 6},
	})
	if err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}
	if finished.State != review.SessionClosed || finished.StopReason != review.StopThresholdReached {
		t.Fatalf("unexpected finished session: %#v", finished)
	}
	if finished.Counts.New != 3 || finished.Counts.Unchanged != 6 || finished.EndedAt.IsZero() {
		t.Fatalf("unexpected counts or end time: %#v", finished)
	}

	_, err = store.FinishSession(ctx, session.ID, reviewstore.SessionEnd{State: review.SessionFailed})
	if !errors.Is(err, review.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := store.RecordSessionProgress(ctx, session.ID, review.Counts{}); !errors.Is(err, review.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on progress, got %v", err)
	}

	place, err := store.GetPlace(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlace failed: %v", err)
	}
	if place.LastSessionAt.IsZero() {
		t.Fatal("expected last_session_at to be stamped")
	}

	sessions, err := store.ListSessions(ctx, reviewstore.SessionFilter{PlaceID: "p1", State: review.SessionClosed})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != session.ID {
		t.Fatalf("unexpected sessions: %#v", sessions)
	}
}

func TestFailAbandonedSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := testsupport.NewClock()
	store := openWithClock(t, cfg, clock.Now)
	ctx := context.Background()
	testsupport.NewPlace(t, store, "p1")

	stale := testsupport.OpenSession(t, store, "p1", review.ModeUpdate)
	clock.Advance(3 * time.Hour)
	fresh := testsupport.OpenSession(t, store, "p1", review.ModeUpdate)

	n, err := store.FailAbandonedSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("FailAbandonedSessions failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one abandoned session, got %d", n)
	}
	got, err := store.GetSession(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.State != review.SessionFailed || got.StopReason != review.StopStoreFailure {
		t.Fatalf("unexpected stale session: %#v", got)
	}
	got, err = store.GetSession(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.State != review.SessionRunning {
		t.Fatalf("fresh session should still be running, got %s", got.State)
	}
}

func openWithClock(t *testing.T, cfg *config.Config, now func() time.Time) *reviewstore.Store {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	opts := reviewstore.OptionsFromConfig(cfg, nil)
	opts.Now = now
	store, err := reviewstore.OpenWithOptions(opts)
	if err != nil {
		t.Fatalf("OpenWithOptions: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
