package textutil

import "testing"

func TestFileToken(t *testing.T) {
	cases := map[string]string{
		"cid:4242":               "cid_4242",
		"0x89c2:0xabc":           "0x89c2_0xabc",
		"  ../etc/passwd ":       "etc_passwd",
		"place id / with spaces": "place_id_with_spaces",
		"":                       "unknown",
		"::::":                   "unknown",
		"already_safe-token.v2":  "already_safe-token.v2",
		"café & downtown":        "caf_downtown",
	}
	for in, want := range cases {
		if got := FileToken(in); got != want {
			t.Fatalf("FileToken(%q) = %q, want %q", in, got, want)
		}
	}
}
