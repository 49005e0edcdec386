package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"revtrack/internal/review"
)

var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"dclid":   {},
	"msclkid": {},
	"twclid":  {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"source":  {},
}

func isTrackingParam(name string) bool {
	name = strings.ToLower(name)
	if strings.HasPrefix(name, "utm_") {
		return true
	}
	_, ok := trackingParams[name]
	return ok
}

// CanonicalizeURL normalizes a source URL so that cosmetic variants of the
// same address compare equal. Failures wrap review.ErrInvalidSourceReference.
func CanonicalizeURL(raw string) (string, error) {
	u, err := parseSource(raw)
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}
	u.Path = path
	u.RawPath = ""

	values := u.Query()
	for name := range values {
		if isTrackingParam(name) {
			values.Del(name)
		}
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(parts, "&")
	return u.String(), nil
}

func parseSource(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, review.Wrap(review.ErrInvalidSourceReference, "identity", "parse", "empty url", nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, review.Wrap(review.ErrInvalidSourceReference, "identity", "parse", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, review.Wrap(review.ErrInvalidSourceReference, "identity", "parse", "unsupported scheme in "+raw, nil)
	}
	if u.Host == "" {
		return nil, review.Wrap(review.ErrInvalidSourceReference, "identity", "parse", "missing host in "+raw, nil)
	}
	return u, nil
}

// AliasKey is the alias table key of a canonical URL.
func AliasKey(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
