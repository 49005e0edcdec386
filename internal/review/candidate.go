package review

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"revtrack/internal/language"
)

// Candidate is a freshly observed review payload from the collector.
type Candidate struct {
	ReviewID              string   `json:"review_id" validate:"required,max=512"`
	Author                string   `json:"author"`
	AuthorURL             string   `json:"author_url,omitempty" validate:"omitempty,url"`
	Rating                float64  `json:"rating" validate:"gte=0,lte=5"`
	RawDate               string   `json:"raw_date_string"`
	ParsedDate            string   `json:"parsed_date,omitempty"`
	Text                  string   `json:"text"`
	Language              string   `json:"detected_language"`
	Likes                 int      `json:"likes" validate:"gte=0"`
	ImageURLs             []string `json:"image_urls"`
	ProfileImageURL       string   `json:"profile_image_url"`
	OwnerResponse         string   `json:"owner_response_text,omitempty"`
	OwnerResponseLanguage string   `json:"owner_response_language,omitempty"`
	BatchIndex            int      `json:"batch_index" validate:"gte=0"`
	// DecodeError is set by collectors that could only partly decode the
	// record; such a candidate is always malformed.
	DecodeError           string   `json:"-"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func candidateValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Normalize trims string fields, folds language codes to map keys and
// deduplicates image URLs. The result is what gets hashed and merged.
func (c Candidate) Normalize() Candidate {
	c.ReviewID = strings.TrimSpace(c.ReviewID)
	c.Author = strings.TrimSpace(c.Author)
	c.AuthorURL = strings.TrimSpace(c.AuthorURL)
	c.RawDate = strings.TrimSpace(c.RawDate)
	c.ParsedDate = strings.TrimSpace(c.ParsedDate)
	c.Text = strings.TrimSpace(c.Text)
	c.Language = language.Normalize(c.Language)
	c.ProfileImageURL = strings.TrimSpace(c.ProfileImageURL)
	c.OwnerResponse = strings.TrimSpace(c.OwnerResponse)
	if strings.TrimSpace(c.OwnerResponseLanguage) == "" {
		c.OwnerResponseLanguage = c.Language
	} else {
		c.OwnerResponseLanguage = language.Normalize(c.OwnerResponseLanguage)
	}
	c.ImageURLs = normalizeSet(c.ImageURLs)
	return c
}

// Validate reports whether the normalized candidate can be classified.
// Failures wrap ErrMalformedCandidate.
func (c Candidate) Validate() error {
	if c.DecodeError != "" {
		return Wrap(ErrMalformedCandidate, "candidate", c.ReviewID, c.DecodeError, nil)
	}
	err := candidateValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return Wrap(ErrMalformedCandidate, "candidate", c.ReviewID, strings.Join(parts, ", "), nil)
	}
	return Wrap(ErrMalformedCandidate, "candidate", c.ReviewID, "validation", err)
}

// TextMap returns the candidate's text keyed by language.
func (c Candidate) TextMap() map[string]string {
	return singleEntry(c.Language, c.Text)
}

// OwnerResponseMap returns the candidate's owner response keyed by language.
func (c Candidate) OwnerResponseMap() map[string]string {
	return singleEntry(c.OwnerResponseLanguage, c.OwnerResponse)
}

// Content returns the hash-relevant projection of the candidate.
func (c Candidate) Content() Content {
	return Content{
		Rating:         c.Rating,
		RawDate:        c.RawDate,
		Text:           c.TextMap(),
		Likes:          c.Likes,
		Images:         c.ImageURLs,
		OwnerResponses: c.OwnerResponseMap(),
	}
}

func singleEntry(lang, value string) map[string]string {
	if value == "" {
		return map[string]string{}
	}
	if lang == "" {
		lang = language.Undetermined
	}
	return map[string]string{lang: value}
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
