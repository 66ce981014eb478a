// Package ideas annotates verified evidence records with one-sentence
// paraphrases synthesized by a model. Synthesis is cached by normalized
// quote text so the same physical claim is paraphrased identically wherever
// it appears, across documents and across runs.
package ideas

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Cache is a persistent quote→idea map backed by a single JSON file. All
// access goes through a mutex held only for the map read or write itself.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// OpenCache loads the cache at path, starting empty when the file is
// missing or unreadable. The parent directory is created if needed.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &Cache{path: path, entries: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		// Corrupt cache file: start fresh, the next Save replaces it.
		c.entries = make(map[string]string)
	}
	return c, nil
}

// Get returns the cached idea for a dedup key.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idea, ok := c.entries[key]
	return idea, ok
}

// Set records an idea for a dedup key.
func (c *Cache) Set(key, idea string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = idea
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save writes the cache back to disk.
func (c *Cache) Save() error {
	c.mu.Lock()
	data, err := json.Marshal(c.entries)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal idea cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write idea cache: %w", err)
	}
	return nil
}
