// Package review turns the merged evidence set into a graded paper draft:
// evidence pack assembly, outline planning, section-by-section expansion
// with footnote continuity, and the bounded grade/revise loop. Prose
// generation is confined to the evidence pack; nothing outside it may be
// cited.
package review

import (
	"fmt"
	"sort"
	"strings"

	"veritas/internal/citation"
	"veritas/internal/evidence"
)

// maxPackItems caps the evidence pack so prompts stay within model context.
const maxPackItems = 80

// EvidenceItem is one pack entry: a verified record joined with its
// document's citation. The ID is positional and stable for the run.
type EvidenceItem struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Page      int    `json:"page"`
	Idea      string `json:"idea"`
	Quote     string `json:"quote"`
	Footnote  string `json:"footnote"`
	Reference string `json:"reference"`
}

// BuildPack joins records with citations into sequentially numbered
// evidence items (E1, E2, ...). Input order determines id assignment, so
// callers must pass records in their stable merged order. Documents missing
// from the citation set get the filename fallback.
func BuildPack(records []evidence.Record, citations citation.Set) []EvidenceItem {
	n := len(records)
	if n > maxPackItems {
		n = maxPackItems
	}
	items := make([]EvidenceItem, 0, n)
	for i, r := range records[:n] {
		entry, ok := citations[r.Filename]
		if !ok {
			entry = citation.Fallback(r.Filename)
		}
		items = append(items, EvidenceItem{
			ID:        fmt.Sprintf("E%d", i+1),
			Filename:  r.Filename,
			Page:      r.PageNumber,
			Idea:      r.Idea,
			Quote:     r.Quote,
			Footnote:  entry.Footnote,
			Reference: entry.Reference,
		})
	}
	return items
}

// PackText renders the pack for prompts, preferring the paraphrased idea
// over the raw quote.
func PackText(items []EvidenceItem) string {
	lines := make([]string, 0, len(items))
	for _, e := range items {
		body := e.Idea
		if strings.TrimSpace(body) == "" {
			body = e.Quote
		}
		lines = append(lines, fmt.Sprintf("[%s] %s (p. %d)", e.ID, body, e.Page))
	}
	return strings.Join(lines, "\n\n")
}

// ReferencesText renders the pack's unique references, one per source
// document, sorted for a stable bibliography.
func ReferencesText(items []EvidenceItem) string {
	byFile := make(map[string]string)
	for _, e := range items {
		byFile[e.Filename] = e.Reference
	}
	refs := make([]string, 0, len(byFile))
	for _, r := range byFile {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	return strings.Join(refs, "\n")
}

// IDSet returns the pack's id vocabulary for outline validation.
func IDSet(items []EvidenceItem) map[string]bool {
	ids := make(map[string]bool, len(items))
	for _, e := range items {
		ids[e.ID] = true
	}
	return ids
}
