package reviewstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"revtrack/internal/review"
)

func TestWriteSectionSerializesInProcess(t *testing.T) {
	sections := newWriteSections("", 3, time.Millisecond, 2*time.Millisecond)
	ctx := context.Background()

	release, err := sections.acquire(ctx, "place-a")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := sections.acquire(ctx, "place-a"); !errors.Is(err, review.ErrStoreBusy) {
		t.Fatalf("expected ErrStoreBusy while held, got %v", err)
	}

	other, err := sections.acquire(ctx, "place-b")
	if err != nil {
		t.Fatalf("other place should not contend: %v", err)
	}
	other()

	release()
	again, err := sections.acquire(ctx, "place-a")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestWriteSectionLockFileBlocksOtherHolders(t *testing.T) {
	dir := t.TempDir()
	first := newWriteSections(dir, 3, time.Millisecond, 2*time.Millisecond)
	second := newWriteSections(dir, 3, time.Millisecond, 2*time.Millisecond)
	ctx := context.Background()

	release, err := first.acquire(ctx, "place-a")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := second.acquire(ctx, "place-a"); !errors.Is(err, review.ErrStoreBusy) {
		t.Fatalf("expected ErrStoreBusy from lock file, got %v", err)
	}
	release()

	release, err = second.acquire(ctx, "place-a")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release()
}

func TestWriteSectionHonoursCancellation(t *testing.T) {
	sections := newWriteSections("", 100, 50*time.Millisecond, time.Second)
	release, err := sections.acquire(context.Background(), "place-a")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sections.acquire(ctx, "place-a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClassifyErrorKeepsMarkers(t *testing.T) {
	wrapped := review.Wrap(review.ErrWriteConflict, component, "op", "", nil)
	if got := classifyError("outer", wrapped); got != wrapped {
		t.Fatalf("marker errors should pass through, got %v", got)
	}
	if got := classifyError("op", errors.New("database is locked")); !errors.Is(got, review.ErrStoreBusy) {
		t.Fatalf("expected ErrStoreBusy, got %v", got)
	}
	if got := classifyError("op", errors.New("sql: database is closed")); !errors.Is(got, review.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", got)
	}
	if got := classifyError("op", errors.New("boom")); review.Kind(got) != "internal" {
		t.Fatalf("unexpected kind %q", review.Kind(got))
	}
}

func TestTimeLayoutOrdersLexically(t *testing.T) {
	a := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	b := a.Add(1500 * time.Microsecond)
	c := a.Add(time.Second)
	if !(formatTime(a) < formatTime(b) && formatTime(b) < formatTime(c)) {
		t.Fatalf("timestamps not lexically ordered: %s %s %s", formatTime(a), formatTime(b), formatTime(c))
	}
}
