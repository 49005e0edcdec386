package review_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revtrack/internal/review"
)

func sampleContent() review.Content {
	return review.Content{
		Rating:         4.5,
		RawDate:        "2 weeks ago",
		Text:           map[string]string{"en": "Great coffee", "de": "Toller Kaffee"},
		Likes:          3,
		Images:         []string{"https://img.example/b.jpg", "https://img.example/a.jpg", "https://img.example/b.jpg"},
		OwnerResponses: map[string]string{"en": "Thanks!"},
	}
}

func TestContentCanonicalGolden(t *testing.T) {
	data, err := sampleContent().Canonical()
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "content_payload", data)
}

func TestContentHashKnownValue(t *testing.T) {
	hash, err := sampleContent().Hash()
	require.NoError(t, err)
	assert.Equal(t, "2ec60b661e97b0b2cf3c861cbaa3bf5d9fe9c19675665f4a186e48597b4a2faa", hash)
}

func TestContentHashIgnoresOrdering(t *testing.T) {
	a := sampleContent()
	b := sampleContent()
	b.Images = []string{"https://img.example/a.jpg", "https://img.example/b.jpg"}
	b.Text = map[string]string{"de": "Toller Kaffee", "en": "Great coffee"}

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestContentHashNilAndEmptyCollectionsMatch(t *testing.T) {
	a := review.Content{Rating: 5, RawDate: "a month ago"}
	b := review.Content{Rating: 5, RawDate: "a month ago", Text: map[string]string{}, Images: []string{}, OwnerResponses: map[string]string{}}

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestContentHashSensitiveToEachField(t *testing.T) {
	base, err := sampleContent().Hash()
	require.NoError(t, err)

	mutations := map[string]func(*review.Content){
		"rating":   func(c *review.Content) { c.Rating = 4 },
		"raw_date": func(c *review.Content) { c.RawDate = "3 weeks ago" },
		"text":     func(c *review.Content) { c.Text = map[string]string{"en": "Great coffee!"} },
		"likes":    func(c *review.Content) { c.Likes = 4 },
		"images":   func(c *review.Content) { c.Images = []string{"https://img.example/a.jpg"} },
		"owner":    func(c *review.Content) { c.OwnerResponses = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := sampleContent()
			mutate(&c)
			got, err := c.Hash()
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestCandidateHashStableAcrossParsedDates(t *testing.T) {
	// The same raw date parsed on different days yields different absolute
	// timestamps; the hash must not move.
	first := review.Candidate{ReviewID: "r1", Rating: 4, RawDate: "2 months ago", ParsedDate: "2026-08-19T10:00:00Z", Text: "ok", Language: "en"}.Normalize()
	second := first
	second.ParsedDate = "2026-08-23T17:42:00Z"

	h1, err := first.Content().Hash()
	require.NoError(t, err)
	h2, err := second.Content().Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
