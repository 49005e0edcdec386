package review

import (
	"encoding/json"
	"slices"
	"strconv"
	"time"
)

// Field names used in audit rows.
const (
	FieldAuthor          = "author"
	FieldAuthorURL       = "author_url"
	FieldRating          = "rating"
	FieldRawDate         = "raw_date_string"
	FieldParsedDate      = "parsed_date"
	FieldText            = "text_by_language"
	FieldOwnerResponse   = "owner_response_by_language"
	FieldLikes           = "likes"
	FieldImages          = "image_urls"
	FieldProfileImageURL = "profile_image_url"
	FieldStatus          = "status"
)

// FieldChange is one differing field between two versions of a review.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// Merge returns the record produced by writing the normalized candidate over
// existing (nil for a new review). The returned record carries the candidate
// hash, an active status and the writing session; Version and timestamps are
// left for the store to assign.
func Merge(placeID string, existing *Review, c Candidate, hash string, sessionID int64) Review {
	if existing == nil {
		return Review{
			PlaceID:                 placeID,
			ReviewID:                c.ReviewID,
			Author:                  c.Author,
			AuthorURL:               c.AuthorURL,
			Rating:                  c.Rating,
			TextByLanguage:          c.TextMap(),
			OwnerResponseByLanguage: c.OwnerResponseMap(),
			Likes:                   c.Likes,
			ImageURLs:               normalizeSet(c.ImageURLs),
			ProfileImageURL:         c.ProfileImageURL,
			RawDate:                 c.RawDate,
			ParsedDate:              c.ParsedDate,
			ContentHash:             hash,
			Status:                  StatusActive,
			LastSessionID:           sessionID,
		}
	}

	merged := *existing
	merged.TextByLanguage = cloneMap(existing.TextByLanguage)
	for lang, text := range c.TextMap() {
		merged.TextByLanguage[lang] = text
	}
	merged.OwnerResponseByLanguage = cloneMap(existing.OwnerResponseByLanguage)
	for lang, text := range c.OwnerResponseMap() {
		merged.OwnerResponseByLanguage[lang] = text
	}
	merged.Likes = max(existing.Likes, c.Likes)
	merged.ImageURLs = unionSet(existing.ImageURLs, c.ImageURLs)
	if c.ProfileImageURL != "" && len(c.ProfileImageURL) >= len(existing.ProfileImageURL) {
		merged.ProfileImageURL = c.ProfileImageURL
	}
	if c.Rating != 0 || existing.Rating == 0 {
		merged.Rating = c.Rating
	}
	merged.Author = firstNonEmpty(c.Author, existing.Author)
	merged.AuthorURL = firstNonEmpty(c.AuthorURL, existing.AuthorURL)
	merged.RawDate = firstNonEmpty(c.RawDate, existing.RawDate)
	merged.ParsedDate = firstNonEmpty(c.ParsedDate, existing.ParsedDate)
	merged.ContentHash = hash
	merged.Status = StatusActive
	merged.LastSessionID = sessionID
	return merged
}

// Diff lists the stored fields that differ between before (nil for a new
// review) and after. For a new review only non-empty fields are listed.
func Diff(before *Review, after Review) []FieldChange {
	var prev Review
	if before != nil {
		prev = *before
	}
	pairs := []struct {
		field    string
		old, new string
	}{
		{FieldAuthor, prev.Author, after.Author},
		{FieldAuthorURL, prev.AuthorURL, after.AuthorURL},
		{FieldRating, formatRating(prev.Rating, before != nil), formatRating(after.Rating, true)},
		{FieldRawDate, prev.RawDate, after.RawDate},
		{FieldParsedDate, prev.ParsedDate, after.ParsedDate},
		{FieldText, encodeMap(prev.TextByLanguage), encodeMap(after.TextByLanguage)},
		{FieldOwnerResponse, encodeMap(prev.OwnerResponseByLanguage), encodeMap(after.OwnerResponseByLanguage)},
		{FieldLikes, formatLikes(prev.Likes, before != nil), formatLikes(after.Likes, true)},
		{FieldImages, encodeSet(prev.ImageURLs), encodeSet(after.ImageURLs)},
		{FieldProfileImageURL, prev.ProfileImageURL, after.ProfileImageURL},
		{FieldStatus, string(prev.Status), string(after.Status)},
	}
	changes := make([]FieldChange, 0, len(pairs))
	for _, p := range pairs {
		if p.old == p.new {
			continue
		}
		changes = append(changes, FieldChange{Field: p.field, Old: p.old, New: p.new})
	}
	return changes
}

// ChangeTypeFor maps a write classification to the audit change type.
func ChangeTypeFor(class Classification) ChangeType {
	switch class {
	case ClassNew:
		return ChangeCreated
	case ClassRestored:
		return ChangeRestored
	default:
		return ChangeUpdated
	}
}

// HistoryFor turns field changes into audit rows for one write.
func HistoryFor(r Review, sessionID int64, changeType ChangeType, changes []FieldChange, at time.Time) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(changes))
	for _, ch := range changes {
		entries = append(entries, HistoryEntry{
			PlaceID:    r.PlaceID,
			ReviewID:   r.ReviewID,
			SessionID:  sessionID,
			FieldName:  ch.Field,
			OldValue:   ch.Old,
			NewValue:   ch.New,
			ChangeType: changeType,
			RecordedAt: at,
		})
	}
	return entries
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatRating(v float64, present bool) string {
	if !present {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatLikes(v int, present bool) string {
	if !present {
		return ""
	}
	return strconv.Itoa(v)
}

func encodeMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func encodeSet(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	data, _ := json.Marshal(sorted)
	return string(data)
}
