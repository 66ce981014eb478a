// Package document models a source document as an ordered sequence of pages
// and loads that shape from PDFs or plain text files. Page numbers are
// 1-based and stable for the lifetime of a run; every verified quote is
// anchored to one of them.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"veritas/internal/textutil"
)

// Page is one extracted page of a document.
type Page struct {
	Number int
	Text   string
}

// Document is an immutable (filename, ordered pages) pair.
type Document struct {
	// Name is the base filename, used as the document identifier everywhere
	// downstream (evidence rows, citations).
	Name  string
	Pages []Page

	// ContentHash is the hex SHA-256 of the raw file bytes, used to key the
	// per-document extraction cache across runs.
	ContentHash string
}

// PageText returns the text of the given 1-based page, or "" if out of range.
func (d *Document) PageText(number int) string {
	for _, p := range d.Pages {
		if p.Number == number {
			return p.Text
		}
	}
	return ""
}

// Empty reports whether no page carries any text.
func (d *Document) Empty() bool {
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

// LeadingText returns up to maxPages of leading page text joined with
// "[PAGE n]" markers, truncated to maxChars. The citation builder uses this
// as the bibliographic inference snippet.
func (d *Document) LeadingText(maxPages, maxChars int) string {
	var parts []string
	for _, p := range d.Pages {
		if len(parts) >= maxPages {
			break
		}
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, fmt.Sprintf("[PAGE %d]\n%s", p.Number, t))
		}
	}
	s := strings.Join(parts, "\n\n")
	if len(s) > maxChars {
		s = s[:maxChars]
	}
	return s
}

// Load reads a single document from disk, dispatching on extension.
// PDFs are extracted page by page; anything else is treated as plain text
// occupying a single page.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc := &Document{
		Name:        filepath.Base(path),
		ContentHash: textutil.HashBytes(raw),
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err := extractPDFPages(raw)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", doc.Name, err)
		}
		doc.Pages = pages
		return doc, nil
	}

	doc.Pages = []Page{{Number: 1, Text: textutil.Sanitize(string(raw))}}
	return doc, nil
}

// LoadDir loads every .pdf and .txt file in dir, sorted by filename so that
// downstream ordering (merge order, citation numbering) is deterministic.
// Returns an error if the directory holds no loadable documents.
func LoadDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read documents dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pdf", ".txt":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("no documents found in %s", dir)
	}

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		doc, err := Load(filepath.Join(dir, name))
		if err != nil {
			// A single unreadable file must not abort the batch.
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no readable documents in %s", dir)
	}
	return docs, nil
}
