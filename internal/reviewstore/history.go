package reviewstore

import (
	"context"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"revtrack/internal/logging"
	"revtrack/internal/review"
)

// HistoryQuery filters ListHistory. Zero values match everything.
type HistoryQuery struct {
	PlaceID    string
	ReviewID   string
	SessionID  int64
	ChangeType review.ChangeType
	Limit      int
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, entries []review.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("review_history")
	ib.Cols("place_id", "review_id", "session_id", "field_name", "old_value", "new_value", "change_type", "recorded_at")
	for _, e := range entries {
		ib.Values(e.PlaceID, e.ReviewID, e.SessionID, e.FieldName,
			nullableString(e.OldValue), nullableString(e.NewValue), string(e.ChangeType), formatTime(e.RecordedAt))
	}
	query, args := ib.Build()
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListHistory returns audit rows in insertion order.
func (s *Store) ListHistory(ctx context.Context, q HistoryQuery) ([]review.HistoryEntry, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(historyColumns).From("review_history")
	if q.PlaceID != "" {
		sb.Where(sb.Equal("place_id", q.PlaceID))
	}
	if q.ReviewID != "" {
		sb.Where(sb.Equal("review_id", q.ReviewID))
	}
	if q.SessionID > 0 {
		sb.Where(sb.Equal("session_id", q.SessionID))
	}
	if q.ChangeType != "" {
		sb.Where(sb.Equal("change_type", string(q.ChangeType)))
	}
	sb.OrderBy("history_id")
	if q.Limit > 0 {
		sb.Limit(q.Limit)
	}
	query, args := sb.Build()

	var rows []historyRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classifyError("list history", err)
	}
	entries := make([]review.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

// ReviewHistory returns the full change history of one review.
func (s *Store) ReviewHistory(ctx context.Context, placeID, reviewID string) ([]review.HistoryEntry, error) {
	return s.ListHistory(ctx, HistoryQuery{PlaceID: placeID, ReviewID: reviewID})
}

// SessionHistory returns every audit row written by one session.
func (s *Store) SessionHistory(ctx context.Context, sessionID int64) ([]review.HistoryEntry, error) {
	return s.ListHistory(ctx, HistoryQuery{SessionID: sessionID})
}

// PruneHistory removes audit rows recorded more than olderThanDays days
// ago. Review rows are never touched. With dryRun it only counts.
func (s *Store) PruneHistory(ctx context.Context, olderThanDays int, dryRun bool) (int64, error) {
	if olderThanDays < 0 {
		return 0, fmt.Errorf("prune history: negative retention %d", olderThanDays)
	}
	cutoff := formatTime(s.timestamp().Add(-time.Duration(olderThanDays) * 24 * time.Hour))

	if dryRun {
		var n int64
		if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM review_history WHERE recorded_at < ?`, cutoff); err != nil {
			return 0, classifyError("prune history", err)
		}
		return n, nil
	}

	var removed int64
	err := s.withWrite(ctx, "prune history", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM review_history WHERE recorded_at < ?`, cutoff)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("history pruned",
		logging.Int64("rows", removed),
		logging.Int("older_than_days", olderThanDays),
		logging.String(logging.FieldEventType, "history_pruned"),
	)
	return removed, nil
}
