// Package identity turns the URLs users paste into stable place ids.
//
// A URL is canonicalized first (tracking parameters dropped, host and scheme
// lowercased, query sorted) and looked up as an alias. Unknown URLs go
// through identifier extraction: a cid query parameter, then a hex feature
// id in the path, then short-link redirect following, and finally a SHA-256
// of the canonical URL. The Resolver registers the place and alias in one
// store transaction; it never merges two existing places.
package identity
