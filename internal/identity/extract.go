package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	hexPairPattern   = regexp.MustCompile(`(0x[0-9a-fA-F]+:0x[0-9a-fA-F]+)`)
	hexSinglePattern = regexp.MustCompile(`!1s(0x[0-9a-fA-F]{8,})`)
	placeNamePattern = regexp.MustCompile(`/place/([^/@]+)`)
	atCoordsPattern  = regexp.MustCompile(`@(-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)`)
	dataCoordPattern = regexp.MustCompile(`!3d(-?\d+(?:\.\d+)?)!4d(-?\d+(?:\.\d+)?)`)
	controlChars     = strings.NewReplacer("\u200e", "", "\u200f", "", "\u202a", "", "\u202b", "", "\u202c", "", "\u202d", "", "\u202e", "")
)

var shortLinkHosts = []string{"maps.app.goo.gl", "goo.gl", "g.co"}

// ExtractID returns the strongest stable identifier embedded in a URL, or
// "" when it carries none: "cid:<n>" from a cid query parameter, otherwise
// the hex feature id from the path.
func ExtractID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if cid := strings.TrimSpace(u.Query().Get("cid")); cid != "" {
		return "cid:" + cid
	}
	target := u.EscapedPath()
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}
	if m := hexPairPattern.FindStringSubmatch(target); m != nil {
		return strings.ToLower(m[1])
	}
	if m := hexSinglePattern.FindStringSubmatch(target); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

// IsShortLink reports whether the URL points at a known link shortener.
func IsShortLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range shortLinkHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// shortLinkID returns "short:<segment>" for short links that could not be
// expanded.
func shortLinkID(raw string) string {
	if !IsShortLink(raw) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}
	return "short:" + segments[len(segments)-1]
}

// fallbackID derives an identifier from the canonical URL itself.
func fallbackID(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return "hash:" + hex.EncodeToString(sum[:])[:16]
}

// Details are the display attributes readable from a place URL.
type Details struct {
	Name      string
	Latitude  *float64
	Longitude *float64
}

// ExtractDetails reads the place name from /place/<name>/ and coordinates
// from @lat,lng or the !3d..!4d.. data segment.
func ExtractDetails(raw string) Details {
	var d Details
	u, err := url.Parse(raw)
	if err != nil {
		return d
	}
	path := u.EscapedPath()
	if m := placeNamePattern.FindStringSubmatch(path); m != nil {
		if name, err := url.PathUnescape(strings.ReplaceAll(m[1], "+", " ")); err == nil {
			d.Name = strings.TrimSpace(controlChars.Replace(name))
		}
	}
	coords := atCoordsPattern.FindStringSubmatch(path)
	if coords == nil {
		coords = dataCoordPattern.FindStringSubmatch(path)
	}
	if coords != nil {
		lat, errLat := strconv.ParseFloat(coords[1], 64)
		lng, errLng := strconv.ParseFloat(coords[2], 64)
		if errLat == nil && errLng == nil && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 {
			d.Latitude = &lat
			d.Longitude = &lng
		}
	}
	return d
}
