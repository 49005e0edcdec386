package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revtrack/internal/identity"
)

func TestExtractID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://maps.example.com/?cid=1234567890", "cid:1234567890"},
		{"https://maps.example.com/maps/place/Cafe/@52.5,13.4,17z/data=!3m1!4b1!4m6!3m5!1s0x47a851e3:0x1a2B3c!8m2", "0x47a851e3:0x1a2b3c"},
		{"https://maps.example.com/maps/place/Cafe/data=!4m2!3m1!1s0x47a851e3c0ffee00", "0x47a851e3c0ffee00"},
		{"https://maps.example.com/maps/place/Cafe", ""},
		{"https://maps.app.goo.gl/AbCd", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, identity.ExtractID(tc.in), tc.in)
	}
}

func TestIsShortLink(t *testing.T) {
	assert.True(t, identity.IsShortLink("https://maps.app.goo.gl/AbCd"))
	assert.True(t, identity.IsShortLink("https://goo.gl/maps/xyz"))
	assert.False(t, identity.IsShortLink("https://maps.example.com/?cid=1"))
}

func TestExtractDetails(t *testing.T) {
	d := identity.ExtractDetails("https://maps.example.com/maps/place/Caf%C3%A9+Mitte/@52.52,13.405,17z")
	assert.Equal(t, "Café Mitte", d.Name)
	require.NotNil(t, d.Latitude)
	require.NotNil(t, d.Longitude)
	assert.InDelta(t, 52.52, *d.Latitude, 1e-9)
	assert.InDelta(t, 13.405, *d.Longitude, 1e-9)

	d = identity.ExtractDetails("https://maps.example.com/maps/place/X/data=!3d-33.86!4d151.2")
	require.NotNil(t, d.Latitude)
	assert.InDelta(t, -33.86, *d.Latitude, 1e-9)

	d = identity.ExtractDetails("https://maps.example.com/?cid=1")
	assert.Empty(t, d.Name)
	assert.Nil(t, d.Latitude)
}
