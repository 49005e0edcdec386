package main

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"revtrack/internal/review"
)

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func formatBytes[T int64 | uint64](n T) string {
	if n < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func formatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// excerpt returns the English text, or the text of the first language
// key, collapsed to one line and cut to n runes.
func excerpt(r review.Review, n int) string {
	text, ok := r.TextByLanguage["en"]
	if !ok {
		langs := slices.Sorted(maps.Keys(r.TextByLanguage))
		if len(langs) > 0 {
			text = r.TextByLanguage[langs[0]]
		}
	}
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) > n {
		return string(runes[:n-1]) + "…"
	}
	return string(runes)
}
