package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revtrack/internal/review"
)

func TestLineCollectorHandsOnMistypedRecords(t *testing.T) {
	input := strings.Join([]string{
		`{"review_id":"r1","rating":5,"batch_index":0}`,
		`{"review_id":"r2","rating":"five","batch_index":0}`,
		`{"review_id":"r3","rating":4,"batch_index":1}`,
	}, "\n")
	collector := newLineCollector(strings.NewReader(input))
	ctx := context.Background()

	first, err := collector.NextBatch(ctx)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if len(first.Candidates) != 2 {
		t.Fatalf("expected 2 candidates in batch 0, got %d", len(first.Candidates))
	}
	bad := first.Candidates[1]
	if bad.ReviewID != "r2" || bad.DecodeError == "" {
		t.Fatalf("expected r2 to carry a decode error, got %#v", bad)
	}
	if err := bad.Normalize().Validate(); !errors.Is(err, review.ErrMalformedCandidate) {
		t.Fatalf("expected malformed candidate, got %v", err)
	}

	second, err := collector.NextBatch(ctx)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if second.Index != 1 || len(second.Candidates) != 1 || second.Candidates[0].DecodeError != "" {
		t.Fatalf("unexpected second batch: %#v", second)
	}
	if _, err := collector.NextBatch(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestLineCollectorRejectsBrokenJSON(t *testing.T) {
	collector := newLineCollector(strings.NewReader(`{"review_id":"r1",`))
	if _, err := collector.NextBatch(context.Background()); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestIngestCountsMistypedRecordAsMalformed(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.baseDir, "mixed.jsonl")
	lines := `{"review_id":"r1","author":"Ana","rating":5,"text":"Great","detected_language":"en","batch_index":0}
{"review_id":"r2","author":"Ben","rating":"five","batch_index":0}
{"review_id":"r3","author":"Cleo","rating":4,"text":"Fine","detected_language":"en","batch_index":1}
`
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write candidates: %v", err)
	}

	out, _, err := runCLI(t, []string{"ingest", path, "--url", testPlaceURL, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v\n%s", err, out)
	}
	var summary review.ScrapeSession
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.State != review.SessionClosed {
		t.Fatalf("expected closed session, got %s (%s)", summary.State, summary.ErrorMessage)
	}
	if summary.Counts.New != 2 || summary.Counts.Malformed != 1 {
		t.Fatalf("unexpected counts %+v", summary.Counts)
	}

	if _, _, err := runCLI(t, []string{"reviews", "show", testPlaceID, "r2"}, env.configPath); !errors.Is(err, review.ErrNotFound) {
		t.Fatalf("mistyped record must not be stored, got %v", err)
	}
}
