package reviewstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"

	"revtrack/internal/review"
)

// Delta is the set of reviews a target has not yet received.
type Delta struct {
	PlaceID string
	Target  string
	// FromSession is the checkpoint the delta starts after.
	FromSession int64
	// ToSession is the value to pass to Advance once the delta is delivered.
	ToSession int64
	// Reviews are ordered by (last_session_id, review_id). Soft-deleted
	// reviews are included and must be treated as deletions downstream.
	Reviews []review.Review
}

// Empty reports whether there is nothing to push.
func (d Delta) Empty() bool {
	return len(d.Reviews) == 0
}

// Checkpoint returns the stored checkpoint, or a zero checkpoint when the
// target has never synced the place.
func (s *Store) Checkpoint(ctx context.Context, placeID, target string) (review.SyncCheckpoint, error) {
	var row checkpointRow
	err := s.db.GetContext(ctx, &row, `SELECT `+checkpointColumns+` FROM sync_checkpoints WHERE place_id = ? AND target = ?`, placeID, target)
	if errors.Is(err, sql.ErrNoRows) {
		return review.SyncCheckpoint{PlaceID: placeID, Target: target, Status: review.SyncOK}, nil
	}
	if err != nil {
		return review.SyncCheckpoint{}, classifyError("checkpoint", err)
	}
	return row.toCheckpoint(), nil
}

// ListCheckpoints returns every checkpoint, optionally for one place.
func (s *Store) ListCheckpoints(ctx context.Context, placeID string) ([]review.SyncCheckpoint, error) {
	query := `SELECT ` + checkpointColumns + ` FROM sync_checkpoints`
	var args []any
	if placeID != "" {
		query += ` WHERE place_id = ?`
		args = append(args, placeID)
	}
	query += ` ORDER BY place_id, target`
	var rows []checkpointRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classifyError("list checkpoints", err)
	}
	out := make([]review.SyncCheckpoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCheckpoint())
	}
	return out, nil
}

// Pending returns the reviews changed after the target's checkpoint. Only
// changes from sessions older than the place's oldest unfinished session
// are included, so a running session is never half-synced. Calling Pending
// repeatedly without Advance returns the same delta.
func (s *Store) Pending(ctx context.Context, placeID, target string) (Delta, error) {
	cp, err := s.Checkpoint(ctx, placeID, target)
	if err != nil {
		return Delta{}, err
	}
	delta := Delta{PlaceID: placeID, Target: target, FromSession: cp.LastSessionID, ToSession: cp.LastSessionID}

	var barrier sql.NullInt64
	if err := s.db.GetContext(ctx, &barrier,
		`SELECT MIN(session_id) FROM scrape_sessions WHERE place_id = ? AND state IN ('open', 'running')`, placeID); err != nil {
		return Delta{}, classifyError("pending", err)
	}
	upper := int64(math.MaxInt64)
	if barrier.Valid {
		upper = barrier.Int64
	}

	var rows []reviewRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+reviewColumns+` FROM reviews
WHERE place_id = ? AND last_session_id > ? AND last_session_id < ?
ORDER BY last_session_id, review_id`, placeID, cp.LastSessionID, upper); err != nil {
		return Delta{}, classifyError("pending", err)
	}
	reviews, err := rowsToReviews(rows)
	if err != nil {
		return Delta{}, err
	}
	delta.Reviews = reviews
	if n := len(reviews); n > 0 {
		delta.ToSession = reviews[n-1].LastSessionID
	}
	return delta, nil
}

// Advance moves the checkpoint to sessionID after a confirmed delivery. The
// checkpoint never moves backwards.
func (s *Store) Advance(ctx context.Context, placeID, target string, sessionID int64) error {
	if sessionID <= 0 {
		return fmt.Errorf("advance %s/%s: invalid session id %d", placeID, target, sessionID)
	}
	return s.withPlaceWrite(ctx, placeID, "advance checkpoint", func(tx *sqlx.Tx) error {
		var row struct {
			PlaceID string `db:"place_id"`
			State   string `db:"state"`
		}
		err := tx.GetContext(ctx, &row, `SELECT place_id, state FROM scrape_sessions WHERE session_id = ?`, sessionID)
		if errors.Is(err, sql.ErrNoRows) {
			return review.Wrap(review.ErrNotFound, component, "advance checkpoint", fmt.Sprintf("session %d", sessionID), nil)
		}
		if err != nil {
			return err
		}
		if row.PlaceID != placeID {
			return fmt.Errorf("advance checkpoint: session %d belongs to place %s, not %s", sessionID, row.PlaceID, placeID)
		}
		if !review.SessionState(row.State).Finished() {
			return fmt.Errorf("advance checkpoint: session %d is still %s", sessionID, row.State)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO sync_checkpoints (place_id, target, last_session_id, synced_at, status, attempt_count, last_error)
VALUES (?, ?, ?, ?, 'ok', 0, NULL)
ON CONFLICT(place_id, target) DO UPDATE SET
  last_session_id = MAX(sync_checkpoints.last_session_id, excluded.last_session_id),
  synced_at = excluded.synced_at,
  status = 'ok',
  attempt_count = 0,
  last_error = NULL`, placeID, target, sessionID, formatTime(s.timestamp()))
		return err
	})
}

// RecordSyncFailure notes a failed push without moving the checkpoint.
func (s *Store) RecordSyncFailure(ctx context.Context, placeID, target, message string) error {
	return s.withPlaceWrite(ctx, placeID, "record sync failure", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO sync_checkpoints (place_id, target, last_session_id, status, attempt_count, last_error)
VALUES (?, ?, 0, 'error', 1, ?)
ON CONFLICT(place_id, target) DO UPDATE SET
  status = 'error',
  attempt_count = sync_checkpoints.attempt_count + 1,
  last_error = excluded.last_error`, placeID, target, message)
		return err
	})
}

// ResetCheckpoint forgets a target's progress so that the next Pending
// returns the full place.
func (s *Store) ResetCheckpoint(ctx context.Context, placeID, target string) error {
	return s.withPlaceWrite(ctx, placeID, "reset checkpoint", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sync_checkpoints WHERE place_id = ? AND target = ?`, placeID, target)
		return err
	})
}
