package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"revtrack/internal/review"
)

// WriteCandidateLines writes candidates as JSON lines, stamping each with
// the batch index given by batchOf.
func WriteCandidateLines(t testing.TB, path string, batchOf func(i int) int, candidates ...review.Candidate) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i, c := range candidates {
		if batchOf != nil {
			c.BatchIndex = batchOf(i)
		}
		if err := enc.Encode(c); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}
