package chunk

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/document"
)

func pages(texts ...string) []document.Page {
	out := make([]document.Page, len(texts))
	for i, t := range texts {
		out[i] = document.Page{Number: i + 1, Text: t}
	}
	return out
}

// assertPartition checks the core invariant: chunk page ranges cover the
// input pages exactly once, in order, with no gaps or overlaps.
func assertPartition(t *testing.T, chunks []Chunk, pageCount int) {
	t.Helper()
	require.NotEmpty(t, chunks)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, pageCount, chunks[len(chunks)-1].PageEnd)
	for i, c := range chunks {
		assert.LessOrEqual(t, c.PageStart, c.PageEnd)
		if i > 0 {
			assert.Equal(t, chunks[i-1].PageEnd+1, c.PageStart)
		}
	}
}

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split(nil, 100))
}

func TestSplit_SingleChunk(t *testing.T) {
	chunks := Split(pages("alpha", "beta"), 10_000)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 2, chunks[0].PageEnd)
	assert.Contains(t, chunks[0].Text, "[PAGE 1]")
	assert.Contains(t, chunks[0].Text, "[PAGE 2]")
}

func TestSplit_BudgetForcesBreak(t *testing.T) {
	big := strings.Repeat("x", 60)
	chunks := Split(pages(big, big, big), 100)
	assertPartition(t, chunks, 3)
	// 60-char pages against a 100-char budget: one page per chunk.
	want := [][2]int{{1, 1}, {2, 2}, {3, 3}}
	got := make([][2]int, len(chunks))
	for i, c := range chunks {
		got[i] = [2]int{c.PageStart, c.PageEnd}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunk ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestSplit_OversizedPageAccepted(t *testing.T) {
	huge := strings.Repeat("y", 500)
	chunks := Split(pages("small", huge, "small"), 100)
	assertPartition(t, chunks, 3)
	// The oversized page lands in its own over-budget chunk, never split.
	var found bool
	for _, c := range chunks {
		if c.PageStart == 2 && c.PageEnd == 2 {
			found = true
			assert.Greater(t, len(c.Text), 100)
		}
	}
	assert.True(t, found, "expected page 2 isolated in its own chunk")
}

func TestSplit_NeverEmptyChunks(t *testing.T) {
	chunks := Split(pages("", "", ""), 50)
	assertPartition(t, chunks, 3)
	for _, c := range chunks {
		assert.NotEmpty(t, c.Text, "chunk text carries page markers even for blank pages")
	}
}
