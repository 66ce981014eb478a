// Package chunk splits a document's page sequence into contiguous,
// page-aligned chunks bounded by a character budget, so that each model call
// sees a bounded slice of the document with its page markers intact.
package chunk

import (
	"fmt"
	"strings"

	"veritas/internal/document"
)

// Chunk is a contiguous run of pages. PageStart..PageEnd is inclusive and
// chunks from one document partition its pages exactly once, in order.
type Chunk struct {
	PageStart int
	PageEnd   int
	Text      string
}

// pageBlock renders one page the way it appears inside chunk text. The
// [PAGE n] marker lets the model attribute a quote to a page hint.
func pageBlock(p document.Page) string {
	return fmt.Sprintf("\n\n[PAGE %d]\n%s", p.Number, p.Text)
}

// Split accumulates pages into chunks of at most charBudget characters.
// A chunk closes when appending the next page would exceed the budget, so a
// single oversized page still becomes its own (over-budget) chunk rather
// than being split mid-page. Returns nil for an empty page list.
func Split(pages []document.Page, charBudget int) []Chunk {
	if len(pages) == 0 {
		return nil
	}
	if charBudget <= 0 {
		charBudget = 10_000
	}

	var (
		chunks []Chunk
		buf    strings.Builder
		start  = pages[0].Number
		last   = pages[0].Number
	)

	flush := func(end int) {
		chunks = append(chunks, Chunk{PageStart: start, PageEnd: end, Text: buf.String()})
		buf.Reset()
	}

	for _, p := range pages {
		block := pageBlock(p)
		if buf.Len() > 0 && buf.Len()+len(block) > charBudget {
			flush(last)
			start = p.Number
		}
		buf.WriteString(block)
		last = p.Number
	}
	flush(last)

	return chunks
}
