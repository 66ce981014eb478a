// Package evidence implements the trust core of the pipeline: extracting
// candidate quotes from document chunks, verifying them against source
// text, and merging verified records across documents. A Record exists only
// after verification; nothing unverifiable travels further.
package evidence

import (
	"veritas/internal/textutil"
)

// Candidate is a model-proposed snippet that has not been verified yet. The
// page hint comes from the model and is advisory only; verification assigns
// the authoritative page.
type Candidate struct {
	PageHint int    `json:"page"`
	Quote    string `json:"quote"`
}

// Record is a verified (quote, page, source) triple, optionally carrying a
// synthesized one-sentence idea. PageNumber is the verified location, which
// may differ from the extractor's page hint.
type Record struct {
	Quote      string `json:"quote"`
	PageNumber int    `json:"page"`
	Filename   string `json:"filename"`
	Idea       string `json:"idea,omitempty"`
}

// Key returns the record's deduplication key: normalized, lowercased quote
// text.
func (r Record) Key() string {
	return textutil.Key(r.Quote)
}

// Valid reports whether the record carries the three required fields.
func (r Record) Valid() bool {
	return textutil.Normalize(r.Quote) != "" && r.PageNumber > 0 && r.Filename != ""
}
