// Package export renders a place's stored reviews as JSON or CSV.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want json or csv)", s)
	}
}

// Source lists stored reviews.
type Source interface {
	ListReviews(ctx context.Context, q reviewstore.ListQuery) (reviewstore.Page, error)
}

// Options controls one export.
type Options struct {
	PlaceID        string
	Format         Format
	IncludeDeleted bool
}

// Document is the JSON export envelope.
type Document struct {
	PlaceID    string          `json:"place_id"`
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Reviews    []review.Review `json:"reviews"`
}

// Exporter writes exports from a Source.
type Exporter struct {
	source Source
	now    func() time.Time
}

// New returns an exporter reading from source.
func New(source Source) *Exporter {
	return &Exporter{source: source, now: time.Now}
}

// Export writes every matching review of opts.PlaceID to w and returns the
// number of reviews written.
func (e *Exporter) Export(ctx context.Context, w io.Writer, opts Options) (int, error) {
	page, err := e.source.ListReviews(ctx, reviewstore.ListQuery{
		PlaceID:        opts.PlaceID,
		IncludeDeleted: opts.IncludeDeleted,
	})
	if err != nil {
		return 0, err
	}
	switch opts.Format {
	case FormatCSV:
		err = WriteCSV(w, page.Reviews)
	case FormatJSON, "":
		err = WriteJSON(w, Document{
			PlaceID:    opts.PlaceID,
			ExportedAt: e.now().UTC(),
			Count:      len(page.Reviews),
			Reviews:    page.Reviews,
		})
	default:
		err = fmt.Errorf("unsupported export format %q", opts.Format)
	}
	if err != nil {
		return 0, err
	}
	return len(page.Reviews), nil
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	if doc.Reviews == nil {
		doc.Reviews = []review.Review{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

var leadingColumns = []string{
	"review_id", "author", "rating", "parsed_date", "raw_date", "likes",
	"author_url", "profile_image_url", "image_urls",
}

var trailingColumns = []string{"created_at", "updated_at", "status"}

// Header returns the CSV header for reviews: fixed columns, then one
// text_<lang> column per language present, then owner_response_<lang>.
func Header(reviews []review.Review) []string {
	textLangs, ownerLangs := languages(reviews)
	header := slices.Clone(leadingColumns)
	for _, lang := range textLangs {
		header = append(header, "text_"+lang)
	}
	for _, lang := range ownerLangs {
		header = append(header, "owner_response_"+lang)
	}
	return append(header, trailingColumns...)
}

// WriteCSV writes reviews with a header row. Image URLs are joined by ';'.
func WriteCSV(w io.Writer, reviews []review.Review) error {
	textLangs, ownerLangs := languages(reviews)
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(reviews)); err != nil {
		return err
	}
	for _, r := range reviews {
		row := []string{
			r.ReviewID,
			r.Author,
			strconv.FormatFloat(r.Rating, 'f', -1, 64),
			r.ParsedDate,
			r.RawDate,
			strconv.Itoa(r.Likes),
			r.AuthorURL,
			r.ProfileImageURL,
			strings.Join(r.ImageURLs, ";"),
		}
		for _, lang := range textLangs {
			row = append(row, r.TextByLanguage[lang])
		}
		for _, lang := range ownerLangs {
			row = append(row, r.OwnerResponseByLanguage[lang])
		}
		row = append(row, formatTime(r.CreatedAt), formatTime(r.UpdatedAt), string(r.Status))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func languages(reviews []review.Review) (text, owner []string) {
	textSet := map[string]struct{}{}
	ownerSet := map[string]struct{}{}
	for _, r := range reviews {
		for lang := range r.TextByLanguage {
			textSet[lang] = struct{}{}
		}
		for lang := range r.OwnerResponseByLanguage {
			ownerSet[lang] = struct{}{}
		}
	}
	return sortedKeys(textSet), sortedKeys(ownerSet)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
