// Package language normalizes the language codes attached to review text and
// owner responses so that per-language maps use one key per language.
//
// Known codes, ISO 639-2 forms and English word forms map through a small
// lookup table; anything else is parsed as a BCP 47 tag and reduced to its
// base language. Unparseable input becomes "und".
package language
