package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revtrack/internal/identity"
	"revtrack/internal/review"
)

func TestCanonicalizeURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Maps.Example.COM/maps/place/Cafe",
			want: "https://maps.example.com/maps/place/Cafe",
		},
		{
			name: "strips trailing slash and fragment",
			in:   "https://maps.example.com/maps/place/Cafe/#reviews",
			want: "https://maps.example.com/maps/place/Cafe",
		},
		{
			name: "drops tracking parameters and sorts the rest",
			in:   "https://maps.example.com/maps?utm_source=x&z=2&fbclid=abc&a=1&ref=home",
			want: "https://maps.example.com/maps?a=1&z=2",
		},
		{
			name: "empty path becomes root",
			in:   "https://maps.example.com?cid=7",
			want: "https://maps.example.com/?cid=7",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := identity.CanonicalizeURL(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalizeURLEquatesCosmeticVariants(t *testing.T) {
	a, err := identity.CanonicalizeURL("https://MAPS.example.com/place/x/?b=2&a=1&utm_medium=social")
	require.NoError(t, err)
	b, err := identity.CanonicalizeURL("https://maps.example.com/place/x?a=1&b=2#top")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, identity.AliasKey(a), identity.AliasKey(b))
}

func TestCanonicalizeURLRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "not a url", "ftp://maps.example.com/x", "https://", "://broken"} {
		_, err := identity.CanonicalizeURL(in)
		assert.ErrorIs(t, err, review.ErrInvalidSourceReference, "input %q", in)
	}
}
