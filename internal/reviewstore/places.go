package reviewstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"revtrack/internal/review"
)

// ResolveAlias returns the alias stored under key, or nil when unknown.
func (s *Store) ResolveAlias(ctx context.Context, key string) (*review.PlaceAlias, error) {
	var row aliasRow
	err := s.db.GetContext(ctx, &row,
		`SELECT alias_key, place_id, source_url, canonical_url, created_at FROM place_aliases WHERE alias_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError("resolve alias", err)
	}
	alias := row.toAlias()
	return &alias, nil
}

// RegisterPlace creates the place (if new) and the alias (if new) in one
// transaction. It never merges or rewrites existing rows.
func (s *Store) RegisterPlace(ctx context.Context, place review.Place, alias review.PlaceAlias) (placeCreated, aliasCreated bool, err error) {
	if place.PlaceID == "" {
		return false, false, review.Wrap(review.ErrInvalidSourceReference, component, "register place", "empty place id", nil)
	}
	err = s.withPlaceWrite(ctx, place.PlaceID, "register place", func(tx *sqlx.Tx) error {
		placeCreated, aliasCreated = false, false
		now := formatTime(s.timestamp())
		res, err := tx.ExecContext(ctx, `INSERT INTO places (place_id, canonical_url, name, latitude, longitude, created_at)
VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(place_id) DO NOTHING`,
			place.PlaceID, place.CanonicalURL, nullableString(place.Name),
			nullableFloat(place.Latitude), nullableFloat(place.Longitude), now)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			placeCreated = true
		}
		if alias.AliasKey == "" {
			return nil
		}
		res, err = tx.ExecContext(ctx, `INSERT INTO place_aliases (alias_key, place_id, source_url, canonical_url, created_at)
VALUES (?, ?, ?, ?, ?) ON CONFLICT(alias_key) DO NOTHING`,
			alias.AliasKey, place.PlaceID, alias.SourceURL, alias.CanonicalURL, now)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			aliasCreated = true
		}
		return nil
	})
	return placeCreated, aliasCreated, err
}

// GetPlace fetches a place by id.
func (s *Store) GetPlace(ctx context.Context, placeID string) (*review.Place, error) {
	var row placeRow
	err := s.db.GetContext(ctx, &row, `SELECT `+placeColumns+`,
  (SELECT COUNT(1) FROM reviews r WHERE r.place_id = places.place_id AND r.status = 'active') AS review_count
FROM places WHERE place_id = ?`, placeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, review.Wrap(review.ErrNotFound, component, "get place", placeID, nil)
	}
	if err != nil {
		return nil, classifyError("get place", err)
	}
	place := row.toPlace()
	return &place, nil
}

// ListPlaces returns every place with its active review count.
func (s *Store) ListPlaces(ctx context.Context) ([]review.Place, error) {
	var rows []placeRow
	err := s.db.SelectContext(ctx, &rows, `SELECT p.place_id, p.canonical_url, p.name, p.latitude, p.longitude, p.created_at, p.last_session_at,
  COUNT(r.review_id) AS review_count
FROM places p
LEFT JOIN reviews r ON r.place_id = p.place_id AND r.status = 'active'
GROUP BY p.place_id
ORDER BY p.created_at, p.place_id`)
	if err != nil {
		return nil, classifyError("list places", err)
	}
	places := make([]review.Place, 0, len(rows))
	for _, row := range rows {
		places = append(places, row.toPlace())
	}
	return places, nil
}

// UpdatePlaceDetails refines the display name and coordinates. Empty or nil
// values leave the stored ones untouched.
func (s *Store) UpdatePlaceDetails(ctx context.Context, placeID, name string, lat, lng *float64) error {
	return s.withPlaceWrite(ctx, placeID, "update place", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE places SET
  name = COALESCE(?, name),
  latitude = COALESCE(?, latitude),
  longitude = COALESCE(?, longitude)
WHERE place_id = ?`, nullableString(name), nullableFloat(lat), nullableFloat(lng), placeID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return review.Wrap(review.ErrNotFound, component, "update place", placeID, nil)
		}
		return nil
	})
}

// PlaceAliases lists the URL variants registered for a place.
func (s *Store) PlaceAliases(ctx context.Context, placeID string) ([]review.PlaceAlias, error) {
	var rows []aliasRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT alias_key, place_id, source_url, canonical_url, created_at
FROM place_aliases WHERE place_id = ? ORDER BY created_at, alias_key`, placeID); err != nil {
		return nil, classifyError("place aliases", err)
	}
	aliases := make([]review.PlaceAlias, 0, len(rows))
	for _, row := range rows {
		aliases = append(aliases, row.toAlias())
	}
	return aliases, nil
}

func placeExists(ctx context.Context, q sqlx.QueryerContext, placeID string) error {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(1) FROM places WHERE place_id = ?`, placeID); err != nil {
		return err
	}
	if n == 0 {
		return review.Wrap(review.ErrNotFound, component, "place", fmt.Sprintf("place %s", placeID), nil)
	}
	return nil
}
