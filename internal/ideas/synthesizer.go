package ideas

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"veritas/internal/evidence"
	"veritas/internal/llm"
	"veritas/internal/textutil"
)

const synthesisSystemPrompt = "You are a research writing assistant. " +
	"Given a verbatim quote from a source, write ONE concise sentence that captures the quote's core idea " +
	"in neutral academic language suitable for a paper. " +
	"Do not include quotation marks. Do not add facts not present in the quote. " +
	"Do not mention page numbers or filenames. Keep it a single sentence."

// Synthesizer adds the idea column to evidence records. Each unique
// normalized quote gets at most one model call per run; results persist in
// the cache across runs.
type Synthesizer struct {
	client llm.Client
	gate   *llm.Gate
	cache  *Cache
	log    *zap.Logger
}

// NewSynthesizer builds a Synthesizer. cache may be nil to disable
// persistence; log may be nil.
func NewSynthesizer(client llm.Client, cache *Cache, concurrency int, log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{
		client: client,
		gate:   llm.NewGate(concurrency),
		cache:  cache,
		log:    log,
	}
}

// Annotate returns a copy of records with the Idea field filled in. Records
// sharing a dedup key share one idea. A record whose synthesis fails keeps
// an empty idea; its siblings are unaffected. The cache is saved once at
// the end when present.
func (s *Synthesizer) Annotate(ctx context.Context, records []evidence.Record, researchQuestion string) []evidence.Record {
	// One synthesis per unique key, in first-occurrence order.
	var keys []string
	quoteByKey := make(map[string]string)
	for _, r := range records {
		key := r.Key()
		if key == "" {
			continue
		}
		if _, seen := quoteByKey[key]; !seen {
			quoteByKey[key] = r.Quote
			keys = append(keys, key)
		}
	}

	// Resolve every cache hit before any goroutine exists; the ideas map is
	// written concurrently from here on and must only be touched under mu.
	ideas := make(map[string]string, len(keys))
	var pending []string
	for _, key := range keys {
		if s.cache != nil {
			if idea, ok := s.cache.Get(key); ok {
				ideas[key] = idea
				continue
			}
		}
		pending = append(pending, key)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, key := range pending {
		wg.Add(1)
		go func(i int, key, quote string) {
			defer wg.Done()
			if err := s.gate.Acquire(ctx); err != nil {
				return
			}
			defer s.gate.Release()

			s.log.Info("synthesizing idea", zap.Int("n", i+1), zap.Int("total", len(pending)))
			idea, err := s.synthesizeOne(ctx, quote, researchQuestion)
			if err != nil {
				s.log.Warn("idea synthesis failed", zap.String("key", key[:min(len(key), 60)]), zap.Error(err))
				return
			}
			mu.Lock()
			ideas[key] = idea
			mu.Unlock()
			if s.cache != nil {
				s.cache.Set(key, idea)
			}
		}(i, key, quoteByKey[key])
	}
	wg.Wait()

	s.log.Info("idea synthesis complete",
		zap.Int("records", len(records)),
		zap.Int("unique", len(keys)),
		zap.Int("model_calls", len(pending)))

	if s.cache != nil && len(pending) > 0 {
		if err := s.cache.Save(); err != nil {
			s.log.Warn("idea cache save failed", zap.Error(err))
		}
	}

	out := make([]evidence.Record, len(records))
	copy(out, records)
	for i := range out {
		out[i].Idea = ideas[out[i].Key()]
	}
	return out
}

// synthesizeOne paraphrases a single quote and enforces the single-sentence
// contract heuristically.
func (s *Synthesizer) synthesizeOne(ctx context.Context, quote, researchQuestion string) (string, error) {
	rq := researchQuestion
	if strings.TrimSpace(rq) == "" {
		rq = "N/A"
	}
	user := fmt.Sprintf(`Research question (context):
%s

Quote:
%s

Task:
Write exactly ONE sentence that rephrases the quote into a strong, paper-usable idea/claim.
Constraints:
- Neutral academic tone.
- No new facts beyond the quote.
- No quotes, no citations, no source mentions.
- One sentence only.`, rq, textutil.Normalize(quote))

	raw, err := s.client.Chat(ctx, synthesisSystemPrompt, user)
	if err != nil {
		return "", err
	}
	idea := textutil.FirstSentenceLine(raw)
	idea = strings.Trim(idea, `"'`)
	return idea, nil
}
