package review_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revtrack/internal/review"
)

func TestMergeNewReview(t *testing.T) {
	c := candidate("r1")
	merged := review.Merge("place-1", nil, c, "h1", 7)

	assert.Equal(t, "place-1", merged.PlaceID)
	assert.Equal(t, map[string]string{"en": "Lovely place"}, merged.TextByLanguage)
	assert.Equal(t, review.StatusActive, merged.Status)
	assert.Equal(t, int64(7), merged.LastSessionID)
	assert.Equal(t, "h1", merged.ContentHash)
}

func TestMergeCombinesFields(t *testing.T) {
	stored := storedFrom(t, candidate("r1"))
	stored.Likes = 10
	stored.ImageURLs = []string{"https://img.example/0.jpg", "https://img.example/1.jpg"}

	c := candidate("r1")
	c.Text = "Schöner Ort"
	c.Language = "de"
	c.OwnerResponseLanguage = "de"
	c.Likes = 4
	c.ImageURLs = []string{"https://img.example/2.jpg"}
	c.ProfileImageURL = "https://img.example/ana=s128-c"

	merged := review.Merge("place-1", stored, c, "h2", 2)

	assert.Equal(t, map[string]string{"en": "Lovely place", "de": "Schöner Ort"}, merged.TextByLanguage)
	assert.Equal(t, 10, merged.Likes)
	assert.Equal(t, []string{"https://img.example/0.jpg", "https://img.example/1.jpg", "https://img.example/2.jpg"}, merged.ImageURLs)
	assert.Equal(t, "https://img.example/ana=s128-c", merged.ProfileImageURL)
	// the stored record is left untouched
	assert.Equal(t, map[string]string{"en": "Lovely place"}, stored.TextByLanguage)
}

func TestMergeKeepsLongerProfileImage(t *testing.T) {
	stored := storedFrom(t, candidate("r1"))
	stored.ProfileImageURL = "https://img.example/ana=s128-c-k-no"

	c := candidate("r1")
	c.ProfileImageURL = "https://img.example/a"
	merged := review.Merge("place-1", stored, c, "h", 2)
	assert.Equal(t, "https://img.example/ana=s128-c-k-no", merged.ProfileImageURL)

	c.ProfileImageURL = ""
	merged = review.Merge("place-1", stored, c, "h", 2)
	assert.Equal(t, "https://img.example/ana=s128-c-k-no", merged.ProfileImageURL)
}

func TestMergeRatingFallsBackToStored(t *testing.T) {
	stored := storedFrom(t, candidate("r1"))
	c := candidate("r1")
	c.Rating = 0
	merged := review.Merge("place-1", stored, c, "h", 2)
	assert.Equal(t, 5.0, merged.Rating)

	stored.Rating = 0
	c.Rating = 3
	merged = review.Merge("place-1", stored, c, "h", 2)
	assert.Equal(t, 3.0, merged.Rating)
}

func TestMergeRestoresStatus(t *testing.T) {
	stored := storedFrom(t, candidate("r1"))
	stored.Status = review.StatusSoftDeleted

	merged := review.Merge("place-1", stored, candidate("r1"), stored.ContentHash, 3)
	changes := review.Diff(stored, merged)

	require.Len(t, changes, 1)
	assert.Equal(t, review.FieldStatus, changes[0].Field)
	assert.Equal(t, "soft_deleted", changes[0].Old)
	assert.Equal(t, "active", changes[0].New)
}

func TestDiffIdenticalResubmissionIsEmpty(t *testing.T) {
	c := candidate("r1")
	stored := storedFrom(t, c)
	merged := review.Merge("place-1", stored, c, stored.ContentHash, 2)
	assert.Empty(t, review.Diff(stored, merged))
}

func TestDiffForNewReviewListsPopulatedFields(t *testing.T) {
	c := candidate("r1")
	merged := review.Merge("place-1", nil, c, "h", 1)
	changes := review.Diff(nil, merged)

	fields := make([]string, 0, len(changes))
	for _, ch := range changes {
		assert.Empty(t, ch.Old)
		fields = append(fields, ch.Field)
	}
	assert.Contains(t, fields, review.FieldText)
	assert.Contains(t, fields, review.FieldStatus)
	assert.NotContains(t, fields, review.FieldOwnerResponse)
	assert.NotContains(t, fields, review.FieldParsedDate)
}

func TestHistoryForBuildsRows(t *testing.T) {
	merged := review.Merge("place-1", nil, candidate("r1"), "h", 4)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	rows := review.HistoryFor(merged, 4, review.ChangeCreated, []review.FieldChange{{Field: "likes", New: "2"}}, at)

	require.Len(t, rows, 1)
	assert.Equal(t, "r1", rows[0].ReviewID)
	assert.Equal(t, int64(4), rows[0].SessionID)
	assert.Equal(t, review.ChangeCreated, rows[0].ChangeType)
	assert.Equal(t, at, rows[0].RecordedAt)
}
