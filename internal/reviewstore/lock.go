package reviewstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"revtrack/internal/review"
)

// writeSections serializes write transactions per place. Each place has a
// one-slot channel for writers inside this process and, when a lock
// directory is configured, a lock file for writers in other processes.
type writeSections struct {
	dir        string
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newWriteSections(dir string, attempts int, backoff, maxBackoff time.Duration) *writeSections {
	return &writeSections{
		dir:        dir,
		attempts:   attempts,
		backoff:    backoff,
		maxBackoff: maxBackoff,
		slots:      make(map[string]chan struct{}),
	}
}

func (w *writeSections) slot(placeID string) chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.slots[placeID]
	if !ok {
		ch = make(chan struct{}, 1)
		w.slots[placeID] = ch
	}
	return ch
}

// LockFileName returns the lock file name used for a place.
func LockFileName(placeID string) string {
	sum := sha256.Sum256([]byte(placeID))
	return hex.EncodeToString(sum[:8]) + ".lock"
}

// acquire enters the place's write section. The returned release func must
// be called exactly once.
func (w *writeSections) acquire(ctx context.Context, placeID string) (func(), error) {
	slot := w.slot(placeID)
	ok, err := w.backoffTry(ctx, func() (bool, error) {
		select {
		case slot <- struct{}{}:
			return true, nil
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, review.Wrap(review.ErrStoreBusy, component, "write section", fmt.Sprintf("place %s busy in this process", placeID), nil)
	}
	releaseSlot := func() { <-slot }

	if w.dir == "" {
		return releaseSlot, nil
	}

	fl := flock.New(filepath.Join(w.dir, LockFileName(placeID)))
	ok, err = w.backoffTry(ctx, fl.TryLock)
	if err != nil {
		releaseSlot()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, review.Wrap(review.ErrStoreUnavailable, component, "write section", "lock file", err)
	}
	if !ok {
		releaseSlot()
		return nil, review.Wrap(review.ErrStoreBusy, component, "write section", fmt.Sprintf("place %s locked by another process", placeID), nil)
	}
	return func() {
		_ = fl.Unlock()
		releaseSlot()
	}, nil
}

// backoffTry calls try until it succeeds, fails, or the attempt budget is
// spent, doubling the wait between attempts up to maxBackoff.
func (w *writeSections) backoffTry(ctx context.Context, try func() (bool, error)) (bool, error) {
	delay := w.backoff
	for attempt := 0; attempt < w.attempts; attempt++ {
		ok, err := try()
		if err != nil || ok {
			return ok, err
		}
		if attempt == w.attempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		}
		delay = min(delay*2, w.maxBackoff)
	}
	return false, nil
}
