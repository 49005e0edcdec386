package reviewstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"revtrack/internal/review"
)

// ListQuery selects a page of reviews for a place.
type ListQuery struct {
	PlaceID        string
	IncludeDeleted bool
	MinRating      float64
	Limit          int
	Offset         int
}

// Page is one slice of a review listing plus the total number of matches.
type Page struct {
	Reviews []review.Review
	Total   int
}

// GetReview fetches one review, soft-deleted or not.
func (s *Store) GetReview(ctx context.Context, placeID, reviewID string) (*review.Review, error) {
	r, err := loadReview(ctx, s.db, placeID, reviewID)
	if err != nil {
		return nil, classifyError("get review", err)
	}
	if r == nil {
		return nil, review.Wrap(review.ErrNotFound, component, "get review", fmt.Sprintf("review %s/%s", placeID, reviewID), nil)
	}
	return r, nil
}

// loadReview returns nil, nil when the review does not exist.
func loadReview(ctx context.Context, q sqlx.QueryerContext, placeID, reviewID string) (*review.Review, error) {
	var row reviewRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+reviewColumns+` FROM reviews WHERE place_id = ? AND review_id = ?`, placeID, reviewID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toReview()
}

func (q ListQuery) apply(sb *sqlbuilder.SelectBuilder) {
	sb.From("reviews")
	sb.Where(sb.Equal("place_id", q.PlaceID))
	if !q.IncludeDeleted {
		sb.Where(sb.Equal("status", string(review.StatusActive)))
	}
	if q.MinRating > 0 {
		sb.Where(sb.GreaterEqualThan("rating", q.MinRating))
	}
}

// ListReviews returns a page of reviews ordered by creation time. Soft-deleted
// reviews are included only when asked for.
func (s *Store) ListReviews(ctx context.Context, q ListQuery) (Page, error) {
	countSB := sqlbuilder.SQLite.NewSelectBuilder()
	countSB.Select("COUNT(1)")
	q.apply(countSB)
	countQuery, countArgs := countSB.Build()

	var page Page
	if err := s.db.GetContext(ctx, &page.Total, countQuery, countArgs...); err != nil {
		return Page{}, classifyError("count reviews", err)
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(reviewColumns)
	q.apply(sb)
	sb.OrderBy("created_at", "review_id")
	if q.Limit > 0 {
		sb.Limit(q.Limit)
		if q.Offset > 0 {
			sb.Offset(q.Offset)
		}
	}
	query, args := sb.Build()

	var rows []reviewRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return Page{}, classifyError("list reviews", err)
	}
	reviews, err := rowsToReviews(rows)
	if err != nil {
		return Page{}, err
	}
	page.Reviews = reviews
	return page, nil
}

// AllReviews returns every review of a place, including soft-deleted ones,
// ordered by review id.
func (s *Store) AllReviews(ctx context.Context, placeID string) ([]review.Review, error) {
	var rows []reviewRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+reviewColumns+` FROM reviews WHERE place_id = ? ORDER BY review_id`, placeID); err != nil {
		return nil, classifyError("all reviews", err)
	}
	return rowsToReviews(rows)
}

// CountReviews returns the number of active reviews for a place.
func (s *Store) CountReviews(ctx context.Context, placeID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM reviews WHERE place_id = ? AND status = 'active'`, placeID); err != nil {
		return 0, classifyError("count reviews", err)
	}
	return n, nil
}
