package reviewstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"revtrack/internal/review"
)

// timeLayout is fixed width so that stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullableFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func parseTimeString(value sql.NullString) time.Time {
	if !value.Valid || value.String == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(timeLayout, value.String); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, value.String); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

const reviewColumns = "place_id, review_id, author, author_url, rating, text_json, owner_response_json, likes, images_json, profile_image_url, raw_date, parsed_date, content_hash, version, status, created_at, updated_at, last_session_id"

type reviewRow struct {
	PlaceID           string         `db:"place_id"`
	ReviewID          string         `db:"review_id"`
	Author            sql.NullString `db:"author"`
	AuthorURL         sql.NullString `db:"author_url"`
	Rating            float64        `db:"rating"`
	TextJSON          string         `db:"text_json"`
	OwnerResponseJSON string         `db:"owner_response_json"`
	Likes             int            `db:"likes"`
	ImagesJSON        string         `db:"images_json"`
	ProfileImageURL   sql.NullString `db:"profile_image_url"`
	RawDate           sql.NullString `db:"raw_date"`
	ParsedDate        sql.NullString `db:"parsed_date"`
	ContentHash       string         `db:"content_hash"`
	Version           int64          `db:"version"`
	Status            string         `db:"status"`
	CreatedAt         sql.NullString `db:"created_at"`
	UpdatedAt         sql.NullString `db:"updated_at"`
	LastSessionID     int64          `db:"last_session_id"`
}

func (r reviewRow) toReview() (*review.Review, error) {
	out := &review.Review{
		PlaceID:         r.PlaceID,
		ReviewID:        r.ReviewID,
		Author:          r.Author.String,
		AuthorURL:       r.AuthorURL.String,
		Rating:          r.Rating,
		Likes:           r.Likes,
		ProfileImageURL: r.ProfileImageURL.String,
		RawDate:         r.RawDate.String,
		ParsedDate:      r.ParsedDate.String,
		ContentHash:     r.ContentHash,
		Version:         r.Version,
		Status:          review.Status(r.Status),
		CreatedAt:       parseTimeString(r.CreatedAt),
		UpdatedAt:       parseTimeString(r.UpdatedAt),
		LastSessionID:   r.LastSessionID,
	}
	if err := decodeJSON(r.TextJSON, &out.TextByLanguage); err != nil {
		return nil, fmt.Errorf("review %s text: %w", r.ReviewID, err)
	}
	if err := decodeJSON(r.OwnerResponseJSON, &out.OwnerResponseByLanguage); err != nil {
		return nil, fmt.Errorf("review %s owner response: %w", r.ReviewID, err)
	}
	if err := decodeJSON(r.ImagesJSON, &out.ImageURLs); err != nil {
		return nil, fmt.Errorf("review %s images: %w", r.ReviewID, err)
	}
	if out.TextByLanguage == nil {
		out.TextByLanguage = map[string]string{}
	}
	if out.OwnerResponseByLanguage == nil {
		out.OwnerResponseByLanguage = map[string]string{}
	}
	if out.ImageURLs == nil {
		out.ImageURLs = []string{}
	}
	return out, nil
}

func rowsToReviews(rows []reviewRow) ([]review.Review, error) {
	out := make([]review.Review, 0, len(rows))
	for _, row := range rows {
		r, err := row.toReview()
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func decodeJSON(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func encodeMap(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

const placeColumns = "place_id, canonical_url, name, latitude, longitude, created_at, last_session_at"

type placeRow struct {
	PlaceID       string          `db:"place_id"`
	CanonicalURL  string          `db:"canonical_url"`
	Name          sql.NullString  `db:"name"`
	Latitude      sql.NullFloat64 `db:"latitude"`
	Longitude     sql.NullFloat64 `db:"longitude"`
	CreatedAt     sql.NullString  `db:"created_at"`
	LastSessionAt sql.NullString  `db:"last_session_at"`
	ReviewCount   int             `db:"review_count"`
}

func (r placeRow) toPlace() review.Place {
	return review.Place{
		PlaceID:       r.PlaceID,
		CanonicalURL:  r.CanonicalURL,
		Name:          r.Name.String,
		Latitude:      floatPtr(r.Latitude),
		Longitude:     floatPtr(r.Longitude),
		CreatedAt:     parseTimeString(r.CreatedAt),
		LastSessionAt: parseTimeString(r.LastSessionAt),
		ReviewCount:   r.ReviewCount,
	}
}

type aliasRow struct {
	AliasKey     string         `db:"alias_key"`
	PlaceID      string         `db:"place_id"`
	SourceURL    string         `db:"source_url"`
	CanonicalURL string         `db:"canonical_url"`
	CreatedAt    sql.NullString `db:"created_at"`
}

func (r aliasRow) toAlias() review.PlaceAlias {
	return review.PlaceAlias{
		AliasKey:     r.AliasKey,
		PlaceID:      r.PlaceID,
		SourceURL:    r.SourceURL,
		CanonicalURL: r.CanonicalURL,
		CreatedAt:    parseTimeString(r.CreatedAt),
	}
}

const sessionColumns = "session_id, place_id, kind, mode, state, source_url, sort_criterion, sort_verified, new_count, updated_count, restored_count, unchanged_count, soft_deleted_count, malformed_count, conflict_count, stop_reason, error_message, started_at, ended_at"

type sessionRow struct {
	ID               int64          `db:"session_id"`
	PlaceID          string         `db:"place_id"`
	Kind             string         `db:"kind"`
	Mode             string         `db:"mode"`
	State            string         `db:"state"`
	SourceURL        sql.NullString `db:"source_url"`
	SortCriterion    sql.NullString `db:"sort_criterion"`
	SortVerified     bool           `db:"sort_verified"`
	NewCount         int            `db:"new_count"`
	UpdatedCount     int            `db:"updated_count"`
	RestoredCount    int            `db:"restored_count"`
	UnchangedCount   int            `db:"unchanged_count"`
	SoftDeletedCount int            `db:"soft_deleted_count"`
	MalformedCount   int            `db:"malformed_count"`
	ConflictCount    int            `db:"conflict_count"`
	StopReason       sql.NullString `db:"stop_reason"`
	ErrorMessage     sql.NullString `db:"error_message"`
	StartedAt        sql.NullString `db:"started_at"`
	EndedAt          sql.NullString `db:"ended_at"`
}

func (r sessionRow) toSession() review.ScrapeSession {
	return review.ScrapeSession{
		ID:            r.ID,
		PlaceID:       r.PlaceID,
		Kind:          review.SessionKind(r.Kind),
		Mode:          review.Mode(r.Mode),
		State:         review.SessionState(r.State),
		SourceURL:     r.SourceURL.String,
		SortCriterion: r.SortCriterion.String,
		SortVerified:  r.SortVerified,
		Counts: review.Counts{
			New:         r.NewCount,
			Updated:     r.UpdatedCount,
			Restored:    r.RestoredCount,
			Unchanged:   r.UnchangedCount,
			SoftDeleted: r.SoftDeletedCount,
			Malformed:   r.MalformedCount,
			Conflicts:   r.ConflictCount,
		},
		StopReason:   review.StopReason(r.StopReason.String),
		ErrorMessage: r.ErrorMessage.String,
		StartedAt:    parseTimeString(r.StartedAt),
		EndedAt:      parseTimeString(r.EndedAt),
	}
}

const historyColumns = "history_id, place_id, review_id, session_id, field_name, old_value, new_value, change_type, recorded_at"

type historyRow struct {
	ID         int64          `db:"history_id"`
	PlaceID    string         `db:"place_id"`
	ReviewID   string         `db:"review_id"`
	SessionID  int64          `db:"session_id"`
	FieldName  string         `db:"field_name"`
	OldValue   sql.NullString `db:"old_value"`
	NewValue   sql.NullString `db:"new_value"`
	ChangeType string         `db:"change_type"`
	RecordedAt sql.NullString `db:"recorded_at"`
}

func (r historyRow) toEntry() review.HistoryEntry {
	return review.HistoryEntry{
		ID:         r.ID,
		PlaceID:    r.PlaceID,
		ReviewID:   r.ReviewID,
		SessionID:  r.SessionID,
		FieldName:  r.FieldName,
		OldValue:   r.OldValue.String,
		NewValue:   r.NewValue.String,
		ChangeType: review.ChangeType(r.ChangeType),
		RecordedAt: parseTimeString(r.RecordedAt),
	}
}

const checkpointColumns = "place_id, target, last_session_id, synced_at, status, attempt_count, last_error"

type checkpointRow struct {
	PlaceID       string         `db:"place_id"`
	Target        string         `db:"target"`
	LastSessionID int64          `db:"last_session_id"`
	SyncedAt      sql.NullString `db:"synced_at"`
	Status        string         `db:"status"`
	AttemptCount  int            `db:"attempt_count"`
	LastError     sql.NullString `db:"last_error"`
}

func (r checkpointRow) toCheckpoint() review.SyncCheckpoint {
	return review.SyncCheckpoint{
		PlaceID:       r.PlaceID,
		Target:        r.Target,
		LastSessionID: r.LastSessionID,
		SyncedAt:      parseTimeString(r.SyncedAt),
		Status:        review.SyncStatus(r.Status),
		AttemptCount:  r.AttemptCount,
		LastError:     r.LastError.String,
	}
}
