// Package textutil holds the text normalization primitives shared by the
// extraction, verification and synthesis stages. Every comparison between a
// model-produced quote and source text goes through Normalize so that
// whitespace differences introduced by PDF extraction never cause a miss.
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Normalize collapses all whitespace runs to single spaces and trims the
// result. It is the canonical form used for quote verification.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Key returns the deduplication key for a quote: normalized, lowercased.
func Key(s string) string {
	return strings.ToLower(Normalize(s))
}

// Sanitize removes Unicode surrogate code points and non-printing control
// characters. PDFs with mathematical symbols often carry surrogate halves
// that cannot be re-encoded as UTF-8 and break JSON request bodies.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0xD800 && r <= 0xDFFF:
			b.WriteByte(' ')
		case r == unicode.ReplacementChar:
			b.WriteByte(' ')
		case r < 32 && r != '\n' && r != '\t' && r != '\r':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HashString returns the hex SHA-256 of s. Used for cache keys.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the hex SHA-256 of raw bytes.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FirstSentenceLine keeps only the first line-like segment of a model
// response. Helper for single-sentence enforcement; callers still treat the
// result as best-effort rather than strict parsing.
func FirstSentenceLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return Normalize(s)
}
