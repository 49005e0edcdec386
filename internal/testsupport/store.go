package testsupport

import (
	"context"
	"fmt"
	"testing"

	"revtrack/internal/config"
	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
)

// MustOpenStore opens a reviewstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *reviewstore.Store {
	t.Helper()

	store, err := reviewstore.Open(cfg, nil)
	if err != nil {
		t.Fatalf("reviewstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewPlace registers a place with a single alias derived from its id.
func NewPlace(t testing.TB, store *reviewstore.Store, placeID string) review.Place {
	t.Helper()

	place := review.Place{
		PlaceID:      placeID,
		CanonicalURL: "https://maps.example.com/place/" + placeID,
		Name:         "Place " + placeID,
	}
	alias := review.PlaceAlias{
		AliasKey:     "alias-" + placeID,
		SourceURL:    place.CanonicalURL,
		CanonicalURL: place.CanonicalURL,
	}
	if _, _, err := store.RegisterPlace(context.Background(), place, alias); err != nil {
		t.Fatalf("store.RegisterPlace: %v", err)
	}
	return place
}

// OpenSession opens and starts a collection session for placeID.
func OpenSession(t testing.TB, store *reviewstore.Store, placeID string, mode review.Mode) *review.ScrapeSession {
	t.Helper()

	ctx := context.Background()
	session, err := store.OpenSession(ctx, reviewstore.SessionSpec{PlaceID: placeID, Mode: mode, SortCriterion: "newest", SortVerified: true})
	if err != nil {
		t.Fatalf("store.OpenSession: %v", err)
	}
	if err := store.MarkSessionRunning(ctx, session.ID); err != nil {
		t.Fatalf("store.MarkSessionRunning: %v", err)
	}
	session.State = review.SessionRunning
	return session
}

// CloseSession finishes a session as closed/exhausted.
func CloseSession(t testing.TB, store *reviewstore.Store, sessionID int64) {
	t.Helper()

	_, err := store.FinishSession(context.Background(), sessionID, reviewstore.SessionEnd{
		State:      review.SessionClosed,
		StopReason: review.StopExhausted,
	})
	if err != nil {
		t.Fatalf("store.FinishSession: %v", err)
	}
}

// Candidate returns a well-formed candidate with deterministic content.
func Candidate(id string) review.Candidate {
	return review.Candidate{
		ReviewID:        id,
		Author:          "Author " + id,
		AuthorURL:       "https://maps.example.com/contrib/" + id,
		Rating:          4,
		RawDate:         "2 weeks ago",
		Text:            "Review text " + id,
		Language:        "en",
		Likes:           1,
		ImageURLs:       []string{"https://img.example.com/" + id + ".jpg"},
		ProfileImageURL: "https://img.example.com/profile/" + id + "=s64",
	}
}

// Candidates returns n candidates named prefix-0 .. prefix-(n-1).
func Candidates(prefix string, n int) []review.Candidate {
	out := make([]review.Candidate, 0, n)
	for i := range n {
		out = append(out, Candidate(fmt.Sprintf("%s-%d", prefix, i)))
	}
	return out
}
