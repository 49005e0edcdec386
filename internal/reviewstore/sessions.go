package reviewstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"revtrack/internal/review"
)

// SessionSpec describes a session to open.
type SessionSpec struct {
	PlaceID       string
	Kind          review.SessionKind
	Mode          review.Mode
	SourceURL     string
	SortCriterion string
	SortVerified  bool
}

// SessionFilter narrows ListSessions. Zero values match everything.
type SessionFilter struct {
	PlaceID string
	State   review.SessionState
	Limit   int
}

// SessionEnd carries the terminal state written by FinishSession.
type SessionEnd struct {
	State        review.SessionState
	StopReason   review.StopReason
	ErrorMessage string
	Counts       review.Counts
}

// OpenSession creates a session row in state open.
func (s *Store) OpenSession(ctx context.Context, spec SessionSpec) (*review.ScrapeSession, error) {
	if spec.Kind == "" {
		spec.Kind = review.KindCollect
	}
	if spec.Mode == "" {
		spec.Mode = review.ModeUpdate
	}
	var id int64
	err := s.withPlaceWrite(ctx, spec.PlaceID, "open session", func(tx *sqlx.Tx) error {
		if err := placeExists(ctx, tx, spec.PlaceID); err != nil {
			return err
		}
		var err error
		id, err = insertSession(ctx, tx, spec, review.SessionOpen, formatTime(s.timestamp()))
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, id)
}

func insertSession(ctx context.Context, tx *sqlx.Tx, spec SessionSpec, state review.SessionState, startedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO scrape_sessions (place_id, kind, mode, state, source_url, sort_criterion, sort_verified, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		spec.PlaceID, string(spec.Kind), string(spec.Mode), string(state),
		nullableString(spec.SourceURL), nullableString(spec.SortCriterion), spec.SortVerified, startedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// openAdminSession records a closed administrative session inside tx and
// returns its id. Admin edits hang their history rows off it.
func (s *Store) openAdminSession(ctx context.Context, tx *sqlx.Tx, placeID string, counts review.Counts) (int64, error) {
	now := formatTime(s.timestamp())
	id, err := insertSession(ctx, tx, SessionSpec{PlaceID: placeID, Kind: review.KindAdmin, Mode: review.ModeUpdate}, review.SessionClosed, now)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, `UPDATE scrape_sessions SET ended_at = ?, soft_deleted_count = ?, restored_count = ? WHERE session_id = ?`,
		now, counts.SoftDeleted, counts.Restored, id)
	return id, err
}

// MarkSessionRunning moves an open session to running.
func (s *Store) MarkSessionRunning(ctx context.Context, id int64) error {
	return s.transitionSession(ctx, id, "start session", `UPDATE scrape_sessions SET state = 'running' WHERE session_id = ? AND state = 'open'`, id)
}

// RecordSessionProgress overwrites the running counters of an unfinished
// session.
func (s *Store) RecordSessionProgress(ctx context.Context, id int64, counts review.Counts) error {
	return s.transitionSession(ctx, id, "record progress", `UPDATE scrape_sessions SET
  new_count = ?, updated_count = ?, restored_count = ?, unchanged_count = ?,
  soft_deleted_count = ?, malformed_count = ?, conflict_count = ?
WHERE session_id = ? AND state IN ('open', 'running')`,
		counts.New, counts.Updated, counts.Restored, counts.Unchanged,
		counts.SoftDeleted, counts.Malformed, counts.Conflicts, id)
}

// FinishSession writes the terminal state, counters and stop reason, and
// stamps the place's last_session_at. A finished session is never
// modified again; a second call returns review.ErrSessionClosed.
func (s *Store) FinishSession(ctx context.Context, id int64, end SessionEnd) (*review.ScrapeSession, error) {
	if !end.State.Finished() {
		return nil, fmt.Errorf("finish session %d: state %q is not terminal", id, end.State)
	}
	now := formatTime(s.timestamp())
	c := end.Counts
	err := s.withWrite(ctx, "finish session", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE scrape_sessions SET
  state = ?, stop_reason = ?, error_message = ?, ended_at = ?,
  new_count = ?, updated_count = ?, restored_count = ?, unchanged_count = ?,
  soft_deleted_count = ?, malformed_count = ?, conflict_count = ?
WHERE session_id = ? AND state IN ('open', 'running')`,
			string(end.State), nullableString(string(end.StopReason)), nullableString(end.ErrorMessage), now,
			c.New, c.Updated, c.Restored, c.Unchanged, c.SoftDeleted, c.Malformed, c.Conflicts, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sessionStateError(ctx, tx, id, "finish session")
		}
		_, err = tx.ExecContext(ctx, `UPDATE places SET last_session_at = ?
WHERE place_id = (SELECT place_id FROM scrape_sessions WHERE session_id = ?)`, now, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, id)
}

func (s *Store) transitionSession(ctx context.Context, id int64, op, query string, args ...any) error {
	return s.withWrite(ctx, op, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sessionStateError(ctx, tx, id, op)
		}
		return nil
	})
}

// sessionStateError explains why a guarded session update matched no row.
func sessionStateError(ctx context.Context, q sqlx.QueryerContext, id int64, op string) error {
	var state string
	err := sqlx.GetContext(ctx, q, &state, `SELECT state FROM scrape_sessions WHERE session_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Wrap(review.ErrNotFound, component, op, fmt.Sprintf("session %d", id), nil)
	}
	if err != nil {
		return err
	}
	return review.Wrap(review.ErrSessionClosed, component, op, fmt.Sprintf("session %d is %s", id, state), nil)
}

// GetSession fetches one session.
func (s *Store) GetSession(ctx context.Context, id int64) (*review.ScrapeSession, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM scrape_sessions WHERE session_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, review.Wrap(review.ErrNotFound, component, "get session", fmt.Sprintf("session %d", id), nil)
	}
	if err != nil {
		return nil, classifyError("get session", err)
	}
	session := row.toSession()
	return &session, nil
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context, filter SessionFilter) ([]review.ScrapeSession, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(sessionColumns).From("scrape_sessions")
	if filter.PlaceID != "" {
		sb.Where(sb.Equal("place_id", filter.PlaceID))
	}
	if filter.State != "" {
		sb.Where(sb.Equal("state", string(filter.State)))
	}
	sb.OrderBy("session_id").Desc()
	if filter.Limit > 0 {
		sb.Limit(filter.Limit)
	}
	query, args := sb.Build()

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classifyError("list sessions", err)
	}
	sessions := make([]review.ScrapeSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.toSession())
	}
	return sessions, nil
}

// FailAbandonedSessions marks open or running sessions that started more
// than olderThan ago as failed. It returns the number of sessions changed.
// A crashed collector leaves such sessions behind; until they are failed
// they hold back sync for their place.
func (s *Store) FailAbandonedSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.timestamp()
	cutoff := formatTime(now.Add(-olderThan))
	var affected int64
	err := s.withWrite(ctx, "fail abandoned sessions", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE scrape_sessions SET
  state = 'failed', stop_reason = ?, error_message = 'abandoned', ended_at = ?
WHERE state IN ('open', 'running') AND started_at < ?`,
			string(review.StopStoreFailure), formatTime(now), cutoff)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
