package evidence

import (
	"sort"
	"strings"

	"veritas/internal/document"
	"veritas/internal/textutil"
)

// Relaxed-match thresholds. A quote of at least relaxedMinLen normalized
// characters is accepted when its first relaxedPrefixLen characters occur in
// a page, tolerating truncation and OCR artifacts at the quote's tail. The
// false-accept rate of this heuristic is unmeasured; tighten with care.
const (
	relaxedMinLen    = 60
	relaxedPrefixLen = 120
)

// FindQuotePage locates a quote in the document and returns its 1-based
// page number, or 0 when the quote cannot be found. Matching is done on
// whitespace-normalized text; exact substring first, then the relaxed
// prefix rule. The first matching page in document order wins.
func FindQuotePage(quote string, doc *document.Document) int {
	q := textutil.Normalize(quote)
	if q == "" {
		return 0
	}

	for _, p := range doc.Pages {
		if containsNormalized(p.Text, q) {
			return p.Number
		}
	}

	if len(q) >= relaxedMinLen {
		needle := q
		if len(needle) > relaxedPrefixLen {
			needle = needle[:relaxedPrefixLen]
		}
		for _, p := range doc.Pages {
			if containsNormalized(p.Text, needle) {
				return p.Number
			}
		}
	}

	return 0
}

func containsNormalized(pageText, needle string) bool {
	return needle != "" && strings.Contains(textutil.Normalize(pageText), needle)
}

// Verify filters candidates down to verified Records for one document.
// Candidates are deduplicated by normalized-lowercased text before lookup,
// unverifiable quotes are dropped silently, and the result is ordered by
// (page ascending, quote length descending) then truncated to maxQuotes.
func Verify(candidates []Candidate, doc *document.Document, maxQuotes int) []Record {
	seen := make(map[string]bool, len(candidates))
	var verified []Record

	for _, c := range candidates {
		key := textutil.Key(c.Quote)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		page := FindQuotePage(c.Quote, doc)
		if page == 0 {
			continue
		}
		verified = append(verified, Record{
			Quote:      textutil.Normalize(c.Quote),
			PageNumber: page,
			Filename:   doc.Name,
		})
	}

	sort.SliceStable(verified, func(i, j int) bool {
		if verified[i].PageNumber != verified[j].PageNumber {
			return verified[i].PageNumber < verified[j].PageNumber
		}
		return len(verified[i].Quote) > len(verified[j].Quote)
	})

	if maxQuotes > 0 && len(verified) > maxQuotes {
		verified = verified[:maxQuotes]
	}
	return verified
}
