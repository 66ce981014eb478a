package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", doc.Name)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, "hello world", doc.Pages[0].Text)
	assert.Len(t, doc.ContentHash, 64)
}

func TestPageText(t *testing.T) {
	doc := &Document{Pages: []Page{{Number: 1, Text: "one"}, {Number: 3, Text: "three"}}}
	assert.Equal(t, "three", doc.PageText(3))
	assert.Equal(t, "", doc.PageText(2))
}

func TestEmpty(t *testing.T) {
	assert.True(t, (&Document{Pages: []Page{{Number: 1, Text: "  \n"}}}).Empty())
	assert.False(t, (&Document{Pages: []Page{{Number: 1, Text: "x"}}}).Empty())
}

func TestLeadingText(t *testing.T) {
	doc := &Document{Pages: []Page{
		{Number: 1, Text: "Title and authors"},
		{Number: 2, Text: "Abstract body"},
		{Number: 3, Text: "Should not appear"},
	}}

	snippet := doc.LeadingText(2, 10_000)
	assert.Contains(t, snippet, "[PAGE 1]")
	assert.Contains(t, snippet, "[PAGE 2]")
	assert.NotContains(t, snippet, "Should not appear")

	truncated := doc.LeadingText(2, 12)
	assert.Len(t, truncated, 12)
}

func TestLoadDir(t *testing.T) {
	t.Run("sorted and filtered", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.csv"), []byte("x"), 0o644))

		docs, err := LoadDir(dir)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a.txt", docs[0].Name)
		assert.Equal(t, "b.txt", docs[1].Name)
	})

	t.Run("empty dir is fatal", func(t *testing.T) {
		_, err := LoadDir(t.TempDir())
		assert.Error(t, err)
	})
}
