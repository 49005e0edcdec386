package review

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// contentDomain separates content digests from any other SHA-256 use.
const contentDomain = "revtrack/review-content/v1"

// Content holds the fields that define a review's substance. Parsed dates
// and bookkeeping timestamps are not part of it.
type Content struct {
	Rating         float64
	RawDate        string
	Text           map[string]string
	Likes          int
	Images         []string
	OwnerResponses map[string]string
}

type canonicalContent struct {
	Rating         float64           `json:"rating"`
	RawDate        string            `json:"raw_date"`
	Text           map[string]string `json:"text"`
	Likes          int               `json:"likes"`
	Images         []string          `json:"images"`
	OwnerResponses map[string]string `json:"owner_responses"`
}

// Canonical returns the deterministic JSON encoding that is hashed.
// Map keys are sorted by encoding/json; the image set is sorted and
// deduplicated here; nil collections encode as empty ones.
func (c Content) Canonical() ([]byte, error) {
	payload := canonicalContent{
		Rating:         c.Rating,
		RawDate:        c.RawDate,
		Text:           nonNilMap(c.Text),
		Likes:          c.Likes,
		Images:         normalizeSet(c.Images),
		OwnerResponses: nonNilMap(c.OwnerResponses),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return data, nil
}

// Hash returns the hex SHA-256 of the domain tag, a zero byte and the
// canonical encoding.
func (c Content) Hash() (string, error) {
	data, err := c.Canonical()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(contentDomain))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	maps.Copy(out, m)
	return out
}

func unionSet(a, b []string) []string {
	return normalizeSet(append(slices.Clone(a), b...))
}
