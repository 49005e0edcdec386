package reviewstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"revtrack/internal/logging"
	"revtrack/internal/review"
)

// UpsertResult describes what happened to one candidate.
type UpsertResult struct {
	Classification review.Classification
	// Written is false when the session mode skipped the write.
	Written bool
	// Review is the stored state after the call, nil for a skipped new review.
	Review   *review.Review
	Changes  []review.FieldChange
	Attempts int
}

// Upsert classifies a candidate against stored state and, when the mode
// allows it, merges and writes it with its history rows. A version
// collision reloads and retries up to the configured write attempts, then
// fails with review.ErrWriteConflict.
func (s *Store) Upsert(ctx context.Context, placeID string, c review.Candidate, mode review.Mode, sessionID int64) (UpsertResult, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return UpsertResult{}, err
	}

	for attempt := 1; attempt <= s.opts.WriteAttempts; attempt++ {
		existing, err := loadReview(ctx, s.db, placeID, c.ReviewID)
		if err != nil {
			return UpsertResult{Attempts: attempt}, classifyError("upsert", err)
		}
		class, hash, err := review.Classify(existing, c)
		if err != nil {
			return UpsertResult{Attempts: attempt}, err
		}
		result := UpsertResult{Classification: class, Review: existing, Attempts: attempt}
		if !mode.Writes(class) {
			return result, nil
		}

		next := review.Merge(placeID, existing, c, hash, sessionID)
		stored, changes, err := s.WriteReview(ctx, existing, next, class, sessionID)
		if errors.Is(err, review.ErrWriteConflict) {
			writeConflicts.Inc()
			s.logger.Debug("version conflict, retrying",
				logging.String(logging.FieldPlaceID, placeID),
				logging.String(logging.FieldReviewID, c.ReviewID),
				logging.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return result, err
		}
		result.Written = true
		result.Review = stored
		result.Changes = changes
		return result, nil
	}
	return UpsertResult{Attempts: s.opts.WriteAttempts}, review.Wrap(review.ErrWriteConflict, component, "upsert",
		fmt.Sprintf("review %s/%s still contended after %d attempts", placeID, c.ReviewID, s.opts.WriteAttempts), nil)
}

// WriteReview commits next as the successor of expected (nil for a new
// review) inside the place's write section. The write succeeds only if the
// stored version still equals expected.Version, or, for a new review, if no
// row exists yet; otherwise it returns review.ErrWriteConflict and writes
// nothing. History rows for every differing field go into the same
// transaction.
func (s *Store) WriteReview(ctx context.Context, expected *review.Review, next review.Review, class review.Classification, sessionID int64) (*review.Review, []review.FieldChange, error) {
	changes := review.Diff(expected, next)
	err := s.withPlaceWrite(ctx, next.PlaceID, "write review", func(tx *sqlx.Tx) error {
		now := s.timestamp()
		next.UpdatedAt = now
		next.LastSessionID = sessionID
		if expected == nil {
			next.Version = 1
			next.CreatedAt = now
		} else {
			next.Version = expected.Version + 1
			next.CreatedAt = expected.CreatedAt
		}

		text, err := encodeMap(next.TextByLanguage)
		if err != nil {
			return err
		}
		owner, err := encodeMap(next.OwnerResponseByLanguage)
		if err != nil {
			return err
		}
		images, err := encodeList(next.ImageURLs)
		if err != nil {
			return err
		}

		var query string
		var args []any
		if expected == nil {
			query = `INSERT INTO reviews (` + reviewColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(place_id, review_id) DO NOTHING`
			args = []any{
				next.PlaceID, next.ReviewID, nullableString(next.Author), nullableString(next.AuthorURL),
				next.Rating, text, owner, next.Likes, images, nullableString(next.ProfileImageURL),
				nullableString(next.RawDate), nullableString(next.ParsedDate), next.ContentHash,
				next.Version, string(next.Status), formatTime(next.CreatedAt), formatTime(next.UpdatedAt), sessionID,
			}
		} else {
			query = `UPDATE reviews SET
  author = ?, author_url = ?, rating = ?, text_json = ?, owner_response_json = ?, likes = ?,
  images_json = ?, profile_image_url = ?, raw_date = ?, parsed_date = ?, content_hash = ?,
  version = version + 1, status = ?, updated_at = ?, last_session_id = ?
WHERE place_id = ? AND review_id = ? AND version = ?`
			args = []any{
				nullableString(next.Author), nullableString(next.AuthorURL), next.Rating, text, owner, next.Likes,
				images, nullableString(next.ProfileImageURL), nullableString(next.RawDate), nullableString(next.ParsedDate),
				next.ContentHash, string(next.Status), formatTime(next.UpdatedAt), sessionID,
				next.PlaceID, next.ReviewID, expected.Version,
			}
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return review.Wrap(review.ErrWriteConflict, component, "write review",
				fmt.Sprintf("review %s/%s changed underneath", next.PlaceID, next.ReviewID), nil)
		}
		return insertHistory(ctx, tx, review.HistoryFor(next, sessionID, review.ChangeTypeFor(class), changes, now))
	})
	if err != nil {
		return nil, nil, err
	}
	writesTotal.WithLabelValues(string(class)).Inc()
	historyRowsTotal.Add(float64(len(changes)))
	return &next, changes, nil
}

// SoftDelete hides a review. The change is recorded under a new admin
// session so that sync deltas pick it up. Hiding an already hidden review
// is a no-op that returns the stored row.
func (s *Store) SoftDelete(ctx context.Context, placeID, reviewID string) (*review.Review, error) {
	return s.setStatus(ctx, placeID, reviewID, review.StatusSoftDeleted)
}

// Restore reverses SoftDelete.
func (s *Store) Restore(ctx context.Context, placeID, reviewID string) (*review.Review, error) {
	return s.setStatus(ctx, placeID, reviewID, review.StatusActive)
}

func (s *Store) setStatus(ctx context.Context, placeID, reviewID string, status review.Status) (*review.Review, error) {
	op := "soft delete"
	changeType := review.ChangeDeleted
	counts := review.Counts{SoftDeleted: 1}
	if status == review.StatusActive {
		op = "restore"
		changeType = review.ChangeRestored
		counts = review.Counts{Restored: 1}
	}

	var (
		out     *review.Review
		changed bool
	)
	err := s.withPlaceWrite(ctx, placeID, op, func(tx *sqlx.Tx) error {
		current, err := loadReview(ctx, tx, placeID, reviewID)
		if err != nil {
			return err
		}
		if current == nil {
			return review.Wrap(review.ErrNotFound, component, op, fmt.Sprintf("review %s/%s", placeID, reviewID), nil)
		}
		if current.Status == status {
			out = current
			return nil
		}
		sessionID, err := s.openAdminSession(ctx, tx, placeID, counts)
		if err != nil {
			return err
		}
		if err := applyStatus(ctx, tx, current, status, changeType, sessionID, s.timestamp()); err != nil {
			return err
		}
		out = current
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		historyRowsTotal.Inc()
		s.logger.Info("review status changed",
			logging.String(logging.FieldPlaceID, placeID),
			logging.String(logging.FieldReviewID, reviewID),
			logging.String("status", string(status)),
			logging.Int64(logging.FieldSessionID, out.LastSessionID),
			logging.String(logging.FieldEventType, "review_"+string(changeType)),
		)
	}
	return out, nil
}

// MarkMissing soft-deletes every active review of the place whose id is not
// in seen, attributing the change to sessionID. It returns how many reviews
// were hidden.
func (s *Store) MarkMissing(ctx context.Context, placeID string, sessionID int64, seen map[string]struct{}) (int, error) {
	var hidden int
	err := s.withPlaceWrite(ctx, placeID, "mark missing", func(tx *sqlx.Tx) error {
		hidden = 0
		var rows []reviewRow
		if err := tx.SelectContext(ctx, &rows, `SELECT `+reviewColumns+` FROM reviews WHERE place_id = ? AND status = 'active' ORDER BY review_id`, placeID); err != nil {
			return err
		}
		now := s.timestamp()
		for _, row := range rows {
			if _, ok := seen[row.ReviewID]; ok {
				continue
			}
			current, err := row.toReview()
			if err != nil {
				return err
			}
			if err := applyStatus(ctx, tx, current, review.StatusSoftDeleted, review.ChangeDeleted, sessionID, now); err != nil {
				return err
			}
			hidden++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	historyRowsTotal.Add(float64(hidden))
	return hidden, nil
}

// applyStatus flips current to status, bumps its version and records the
// status change. current is updated in place.
func applyStatus(ctx context.Context, tx *sqlx.Tx, current *review.Review, status review.Status, changeType review.ChangeType, sessionID int64, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE reviews SET status = ?, version = version + 1, updated_at = ?, last_session_id = ?
WHERE place_id = ? AND review_id = ? AND version = ?`,
		string(status), formatTime(now), sessionID, current.PlaceID, current.ReviewID, current.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return review.Wrap(review.ErrWriteConflict, component, "set status",
			fmt.Sprintf("review %s/%s changed underneath", current.PlaceID, current.ReviewID), nil)
	}
	entry := review.HistoryEntry{
		PlaceID:    current.PlaceID,
		ReviewID:   current.ReviewID,
		SessionID:  sessionID,
		FieldName:  review.FieldStatus,
		OldValue:   string(current.Status),
		NewValue:   string(status),
		ChangeType: changeType,
		RecordedAt: now,
	}
	current.Status = status
	current.Version++
	current.UpdatedAt = now
	current.LastSessionID = sessionID
	return insertHistory(ctx, tx, []review.HistoryEntry{entry})
}
