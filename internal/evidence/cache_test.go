package evidence

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_RoundTrip(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	_, ok := cache.Get("hash", "question")
	assert.False(t, ok)

	records := []Record{{Quote: "q", PageNumber: 3, Filename: "a.pdf", Idea: "an idea"}}
	require.NoError(t, cache.Put("hash", "question", records))

	got, ok := cache.Get("hash", "question")
	require.True(t, ok)
	assert.Equal(t, records, got)

	// A different research question is a distinct key.
	_, ok = cache.Get("hash", "other question")
	assert.False(t, ok)
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)

	require.NoError(t, cache.Put("hash", "q", []Record{{Quote: "q", PageNumber: 1, Filename: "a.pdf"}}))
	require.NoError(t, os.WriteFile(cache.path("hash", "q"), []byte("{not json"), 0o644))

	_, ok := cache.Get("hash", "q")
	assert.False(t, ok)

	// The next Put heals the entry.
	require.NoError(t, cache.Put("hash", "q", nil))
	got, ok := cache.Get("hash", "q")
	assert.True(t, ok)
	assert.Empty(t, got)
}
