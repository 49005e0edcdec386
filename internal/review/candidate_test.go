package review_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"revtrack/internal/review"
)

func TestCandidateNormalize(t *testing.T) {
	c := review.Candidate{
		ReviewID:  "  r1 ",
		Language:  "en-GB",
		Text:      " hi ",
		ImageURLs: []string{"b", "", "a", "b"},
	}.Normalize()

	assert.Equal(t, "r1", c.ReviewID)
	assert.Equal(t, "en", c.Language)
	assert.Equal(t, "en", c.OwnerResponseLanguage)
	assert.Equal(t, "hi", c.Text)
	assert.Equal(t, []string{"a", "b"}, c.ImageURLs)
}

func TestCandidateValidate(t *testing.T) {
	ok := review.Candidate{ReviewID: "r1", Rating: 4}.Normalize()
	assert.NoError(t, ok.Validate())

	cases := map[string]review.Candidate{
		"missing id":      {ReviewID: "   "},
		"rating too high": {ReviewID: "r1", Rating: 7},
		"negative likes":  {ReviewID: "r1", Likes: -1},
		"bad author url":  {ReviewID: "r1", AuthorURL: "not a url"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			err := c.Normalize().Validate()
			assert.True(t, errors.Is(err, review.ErrMalformedCandidate), "got %v", err)
		})
	}
}

func TestPartlyDecodedCandidateIsMalformed(t *testing.T) {
	c := review.Candidate{ReviewID: "r1", Rating: 4, DecodeError: "rating: cannot unmarshal string"}.Normalize()
	err := c.Validate()
	assert.ErrorIs(t, err, review.ErrMalformedCandidate)
	assert.Contains(t, err.Error(), "cannot unmarshal")
}

func TestErrorKinds(t *testing.T) {
	err := review.Wrap(review.ErrStoreBusy, "review-store", "upsert", "place-1", errors.New("database is locked"))
	assert.True(t, errors.Is(err, review.ErrStoreBusy))
	assert.Equal(t, "store_busy", review.Kind(err))
	assert.True(t, review.Retryable(err))
	assert.False(t, review.Fatal(err))
	assert.Contains(t, err.Error(), "review-store: upsert: place-1")

	fatal := review.Wrap(review.ErrStoreUnavailable, "review-store", "open", "", nil)
	assert.True(t, review.Fatal(fatal))
	assert.Equal(t, "internal", review.Kind(errors.New("boom")))
}
