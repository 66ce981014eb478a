// Package citation infers a best-effort bibliographic entry per source
// document from its leading pages. Inference never fails a document: when
// the model cannot produce a usable answer the entry is fabricated from the
// filename with an "(n.d.)" date so downstream references are never absent.
package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"veritas/internal/document"
	"veritas/internal/llm"
)

const citeSystemPrompt = "Infer the best APA-style reference. Return JSON only."

// Snippet extraction limits for citation inference. The front matter of a
// paper carries the bibliographic signal; anything past it is noise.
const (
	snippetMaxPages = 2
	snippetMaxChars = 10_000
)

// Entry is one document's citation in both long and short form.
type Entry struct {
	Reference string `json:"reference"`
	Footnote  string `json:"footnote"`
}

// Fallback builds the defensive entry for a document with no usable
// bibliographic signal.
func Fallback(filename string) Entry {
	return Entry{
		Reference: fmt.Sprintf("%s. (n.d.).", filename),
		Footnote:  fmt.Sprintf("%s, n.d.", filename),
	}
}

// Set maps filename to citation entry, one entry per document.
type Set map[string]Entry

// Save writes the set as indented JSON.
func (s Set) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write citations: %w", err)
	}
	return nil
}

// LoadSet reads a previously saved citation set.
func LoadSet(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read citations: %w", err)
	}
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse citations: %w", err)
	}
	return s, nil
}

// Builder infers citation entries concurrently across documents.
type Builder struct {
	client llm.Client
	gate   *llm.Gate
	log    *zap.Logger
}

// NewBuilder builds a Builder; log may be nil.
func NewBuilder(client llm.Client, concurrency int, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		client: client,
		gate:   llm.NewGate(concurrency),
		log:    log,
	}
}

// Build returns one entry per document. Every document gets an entry: model
// or parse failures degrade to the filename fallback rather than erroring.
func (b *Builder) Build(ctx context.Context, docs []*document.Document) Set {
	set := make(Set, len(docs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, doc := range docs {
		wg.Add(1)
		go func(doc *document.Document) {
			defer wg.Done()
			entry := b.buildOne(ctx, doc)
			mu.Lock()
			set[doc.Name] = entry
			mu.Unlock()
		}(doc)
	}
	wg.Wait()
	return set
}

func (b *Builder) buildOne(ctx context.Context, doc *document.Document) Entry {
	fallback := Fallback(doc.Name)

	snippet := doc.LeadingText(snippetMaxPages, snippetMaxChars)
	if strings.TrimSpace(snippet) == "" {
		return fallback
	}

	if err := b.gate.Acquire(ctx); err != nil {
		return fallback
	}
	defer b.gate.Release()

	user := fmt.Sprintf("%s\n\nReturn JSON {reference, footnote}.", snippet)
	raw, err := b.client.Chat(ctx, citeSystemPrompt, user)
	if err != nil {
		b.log.Warn("citation inference failed", zap.String("doc", doc.Name), zap.Error(err))
		return fallback
	}

	var parsed Entry
	if !llm.DecodeJSON(raw, &parsed) {
		b.log.Warn("unparseable citation response", zap.String("doc", doc.Name))
		return fallback
	}
	if strings.TrimSpace(parsed.Reference) == "" {
		parsed.Reference = fallback.Reference
	}
	if strings.TrimSpace(parsed.Footnote) == "" {
		parsed.Footnote = fallback.Footnote
	}
	return parsed
}
