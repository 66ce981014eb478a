package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"veritas/internal/textutil"
)

// Cache persists per-document extraction results across runs as flat JSON
// files keyed by (document content hash, research question hash). A hit
// skips both the model calls and verification for that document.
type Cache struct {
	dir string
}

// NewCache opens (creating if needed) an extraction cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(contentHash, researchQuestion string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", contentHash, textutil.HashString(researchQuestion)))
}

// Get returns the cached records for the key, if present and readable.
func (c *Cache) Get(contentHash, researchQuestion string) ([]Record, bool) {
	data, err := os.ReadFile(c.path(contentHash, researchQuestion))
	if err != nil {
		return nil, false
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		// Corrupt entry: treat as a miss, the next Put overwrites it.
		return nil, false
	}
	return records, true
}

// Put stores records under the key, overwriting any prior entry.
func (c *Cache) Put(contentHash, researchQuestion string, records []Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := os.WriteFile(c.path(contentHash, researchQuestion), data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}
