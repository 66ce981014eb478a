package evidence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"veritas/internal/chunk"
	"veritas/internal/document"
	"veritas/internal/llm"
	"veritas/internal/textutil"
)

const extractSystemPrompt = `You extract evidence from documents for academic research.
Only return quotes that appear EXACTLY in the provided text. No paraphrase.
Prefer quotes that directly answer the research question or provide strong evidence.
Keep quotes short and self-contained (1-2 sentences).`

// minQuotesPerChunk floors the per-chunk budget so short chunks still yield
// evidence even when a document splits into many chunks.
const minQuotesPerChunk = 3

// ExtractorConfig bounds one document's extraction.
type ExtractorConfig struct {
	// MaxQuotesPerDoc is the total verified-quote budget per document.
	MaxQuotesPerDoc int
	// CharsPerChunk is the chunker budget in characters.
	CharsPerChunk int
	// Concurrency bounds simultaneous chunk calls within one document.
	Concurrency int
}

// DefaultExtractorConfig returns the defaults carried over from production
// tuning.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxQuotesPerDoc: 15,
		CharsPerChunk:   10_000,
		Concurrency:     3,
	}
}

// Extractor turns documents into verified evidence Records via model calls.
type Extractor struct {
	client llm.Client
	gate   *llm.Gate
	cache  *Cache
	config ExtractorConfig
	log    *zap.Logger
}

// NewExtractor builds an Extractor. cache may be nil to disable caching;
// log may be nil.
func NewExtractor(client llm.Client, cache *Cache, config ExtractorConfig, log *zap.Logger) *Extractor {
	if config.MaxQuotesPerDoc <= 0 {
		config = DefaultExtractorConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		client: client,
		gate:   llm.NewGate(config.Concurrency),
		cache:  cache,
		config: config,
		log:    log,
	}
}

// ExtractDocument runs the chunk→extract→verify pipeline for one document
// and research question. On a cache hit both the model calls and the
// verification pass are skipped entirely.
func (e *Extractor) ExtractDocument(ctx context.Context, doc *document.Document, researchQuestion string) ([]Record, error) {
	if e.cache != nil {
		if records, ok := e.cache.Get(doc.ContentHash, researchQuestion); ok {
			e.log.Info("extraction cache hit", zap.String("doc", doc.Name))
			return records, nil
		}
	}

	chunks := chunk.Split(doc.Pages, e.config.CharsPerChunk)
	if len(chunks) == 0 || doc.Empty() {
		e.log.Info("no text content", zap.String("doc", doc.Name))
		return nil, nil
	}

	perChunk := e.config.MaxQuotesPerDoc / len(chunks)
	if perChunk < minQuotesPerChunk {
		perChunk = minQuotesPerChunk
	}

	e.log.Info("extracting",
		zap.String("doc", doc.Name),
		zap.Int("chunks", len(chunks)),
		zap.Int("quotes_per_chunk", perChunk))

	candidates, err := e.extractChunks(ctx, chunks, researchQuestion, perChunk)
	if err != nil {
		return nil, err
	}

	records := Verify(candidates, doc, e.config.MaxQuotesPerDoc)
	e.log.Info("verified quotes",
		zap.String("doc", doc.Name),
		zap.Int("candidates", len(candidates)),
		zap.Int("verified", len(records)))

	if e.cache != nil {
		if err := e.cache.Put(doc.ContentHash, researchQuestion, records); err != nil {
			e.log.Warn("extraction cache write failed", zap.String("doc", doc.Name), zap.Error(err))
		}
	}
	return records, nil
}

// extractChunks fans the chunk calls out under the admission gate. A chunk
// whose call fails terminally contributes nothing; its siblings proceed.
func (e *Extractor) extractChunks(ctx context.Context, chunks []chunk.Chunk, rq string, perChunk int) ([]Candidate, error) {
	type result struct {
		idx        int
		candidates []Candidate
	}

	results := make(chan result, len(chunks))
	for i, c := range chunks {
		go func(idx int, c chunk.Chunk) {
			candidates := e.extractChunk(ctx, c, rq, perChunk)
			results <- result{idx: idx, candidates: candidates}
		}(i, c)
	}

	byChunk := make([][]Candidate, len(chunks))
	for range chunks {
		select {
		case r := <-results:
			byChunk[r.idx] = r.candidates
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var all []Candidate
	for _, cs := range byChunk {
		all = append(all, cs...)
	}
	return all, nil
}

// extractChunk asks the model for up to maxQuotes candidates from one chunk.
// Fails closed: any call or parse failure yields zero candidates.
func (e *Extractor) extractChunk(ctx context.Context, c chunk.Chunk, rq string, maxQuotes int) []Candidate {
	if err := e.gate.Acquire(ctx); err != nil {
		return nil
	}
	defer e.gate.Release()

	raw, err := e.client.Chat(ctx, extractSystemPrompt, extractUserPrompt(rq, c, maxQuotes))
	if err != nil {
		e.log.Warn("chunk extraction failed",
			zap.Int("page_start", c.PageStart),
			zap.Int("page_end", c.PageEnd),
			zap.Error(err))
		return nil
	}

	var parsed struct {
		Quotes []Candidate `json:"quotes"`
	}
	if !llm.DecodeJSON(raw, &parsed) {
		e.log.Warn("unparseable extraction response",
			zap.Int("page_start", c.PageStart),
			zap.Int("page_end", c.PageEnd))
		return nil
	}

	out := make([]Candidate, 0, len(parsed.Quotes))
	for _, q := range parsed.Quotes {
		if textutil.Normalize(q.Quote) == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}

func extractUserPrompt(rq string, c chunk.Chunk, maxQuotes int) string {
	return fmt.Sprintf(`RESEARCH QUESTION:
%s

TASK:
From the text below (pages %d-%d), extract up to %d verbatim quotes that directly help answer the research question.
Each quote should be a sentence or two (short contiguous snippet).

OUTPUT FORMAT:
Return ONLY valid JSON:
{
  "quotes": [
    {
      "page": 12,
      "quote": "verbatim text here"
    }
  ]
}

TEXT:
%s`, rq, c.PageStart, c.PageEnd, maxQuotes, textutil.Sanitize(c.Text))
}
