package review

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/citation"
	"veritas/internal/evidence"
)

func TestBuildPack_IDsAndCitationJoin(t *testing.T) {
	records := []evidence.Record{
		{Quote: "first quote", PageNumber: 3, Filename: "a.pdf", Idea: "first idea"},
		{Quote: "second quote", PageNumber: 7, Filename: "missing.pdf"},
	}
	citations := citation.Set{
		"a.pdf": {Reference: "A. (2020). Title.", Footnote: "A, 2020"},
	}

	items := BuildPack(records, citations)
	require.Len(t, items, 2)

	assert.Equal(t, "E1", items[0].ID)
	assert.Equal(t, "E2", items[1].ID)
	assert.Equal(t, "A, 2020", items[0].Footnote)
	// A document absent from the citation set gets the defensive entry.
	assert.Equal(t, citation.Fallback("missing.pdf"), citation.Entry{
		Reference: items[1].Reference,
		Footnote:  items[1].Footnote,
	})
}

func TestBuildPack_CapsAtMaxItems(t *testing.T) {
	var records []evidence.Record
	for i := 0; i < 200; i++ {
		records = append(records, evidence.Record{
			Quote: fmt.Sprintf("quote %d", i), PageNumber: 1, Filename: "a.pdf",
		})
	}
	items := BuildPack(records, citation.Set{})
	require.Len(t, items, maxPackItems)
	assert.Equal(t, fmt.Sprintf("E%d", maxPackItems), items[len(items)-1].ID)
}

func TestPackText_PrefersIdeaOverQuote(t *testing.T) {
	items := []EvidenceItem{
		{ID: "E1", Idea: "a paraphrase", Quote: "raw quote", Page: 4},
		{ID: "E2", Quote: "only a quote", Page: 9},
	}
	text := PackText(items)
	assert.Contains(t, text, "[E1] a paraphrase (p. 4)")
	assert.Contains(t, text, "[E2] only a quote (p. 9)")
	assert.NotContains(t, text, "raw quote")
}

func TestReferencesText_SortedUniquePerDocument(t *testing.T) {
	items := []EvidenceItem{
		{ID: "E1", Filename: "b.pdf", Reference: "Zeta. (2021)."},
		{ID: "E2", Filename: "a.pdf", Reference: "Alpha. (2019)."},
		{ID: "E3", Filename: "b.pdf", Reference: "Zeta. (2021)."},
	}
	refs := ReferencesText(items)
	lines := strings.Split(refs, "\n")
	require.Len(t, lines, 2, "one reference per document")
	assert.Equal(t, "Alpha. (2019).", lines[0])
	assert.Equal(t, "Zeta. (2021).", lines[1])
}
