package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"revtrack/internal/config"
	"revtrack/internal/fileutil"
	"revtrack/internal/logging"
	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
	"revtrack/internal/textutil"
)

// Snapshot is the document a JSON target keeps per place.
type Snapshot struct {
	PlaceID       string          `json:"place_id"`
	LastSessionID int64           `json:"last_session_id"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Reviews       []review.Review `json:"reviews"`
}

// JSONTarget maintains one snapshot file per place, merged by review id.
type JSONTarget struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewJSONTarget writes snapshots under dir.
func NewJSONTarget(dir string, logger *slog.Logger) *JSONTarget {
	return &JSONTarget{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "sync-json"),
		now:    time.Now,
	}
}

func (t *JSONTarget) Name() string { return config.TargetJSON }

func (t *JSONTarget) Close() error { return nil }

// SnapshotPath returns the snapshot file for placeID.
func (t *JSONTarget) SnapshotPath(placeID string) string {
	return filepath.Join(t.dir, textutil.FileToken(placeID)+".json")
}

// Load reads the current snapshot; a missing file yields an empty one.
func (t *JSONTarget) Load(placeID string) (Snapshot, error) {
	snap := Snapshot{PlaceID: placeID}
	if _, err := fileutil.ReadJSON(t.SnapshotPath(placeID), &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Push merges the delta into the place snapshot and rewrites it atomically.
func (t *JSONTarget) Push(ctx context.Context, delta reviewstore.Delta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := t.Load(delta.PlaceID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	byID := make(map[string]review.Review, len(snap.Reviews)+len(delta.Reviews))
	for _, rv := range snap.Reviews {
		byID[rv.ReviewID] = rv
	}
	for _, rv := range delta.Reviews {
		if current, ok := byID[rv.ReviewID]; ok && current.Version > rv.Version {
			continue
		}
		if rv.Deleted() {
			delete(byID, rv.ReviewID)
			continue
		}
		byID[rv.ReviewID] = rv
	}

	snap.Reviews = snap.Reviews[:0]
	for _, rv := range byID {
		snap.Reviews = append(snap.Reviews, rv)
	}
	sort.Slice(snap.Reviews, func(i, j int) bool {
		a, b := snap.Reviews[i], snap.Reviews[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ReviewID < b.ReviewID
	})
	snap.PlaceID = delta.PlaceID
	snap.LastSessionID = max(snap.LastSessionID, delta.ToSession)
	snap.UpdatedAt = t.now().UTC()

	path := t.SnapshotPath(delta.PlaceID)
	if err := fileutil.WriteJSONAtomic(path, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	t.logger.Debug("snapshot written",
		logging.String(logging.FieldPlaceID, delta.PlaceID),
		logging.String("path", path),
		logging.Int("reviews", len(snap.Reviews)),
	)
	return nil
}
