package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"veritas/internal/document"
	"veritas/internal/evidence"
	"veritas/internal/ideas"
)

// QuotesArtifacts names the files the quotes pipeline writes.
type QuotesArtifacts struct {
	RQQuotesCSV string            `json:"rq_quotes_csv"`
	MergedCSV   string            `json:"merged_csv"`
	FinalCSV    string            `json:"final_csv"`
	Records     []evidence.Record `json:"-"`
}

// RunQuotes executes documents → verified quotes → merge → ideas. Per-
// document extraction failures are logged and skipped so one bad document
// never sinks the batch; no documents at all, or no usable evidence, is
// fatal.
func (r *Runner) RunQuotes(ctx context.Context, rq, papersDir, csvDir string, progress ProgressFunc) (*QuotesArtifacts, error) {
	r.progress(progress, "loading_documents", 1)

	if err := os.MkdirAll(csvDir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir: %w", err)
	}
	docs, err := document.LoadDir(papersDir)
	if err != nil {
		return nil, err
	}
	r.progress(progress, "extracting_quotes", 5)

	cache, err := evidence.NewCache(filepath.Join(r.cfg.Paths.CacheDir, "extraction"))
	if err != nil {
		return nil, err
	}
	extractor := evidence.NewExtractor(r.client, cache, evidence.ExtractorConfig{
		MaxQuotesPerDoc: r.cfg.Extraction.MaxQuotesPerDoc,
		CharsPerChunk:   r.cfg.Extraction.CharsPerChunk,
		Concurrency:     r.cfg.Extraction.Concurrency,
	}, r.log)

	// Fan out across documents; each worker captures its own failure.
	perDoc := make([][]evidence.Record, len(docs))
	var mu sync.Mutex
	failed := 0

	limit := r.cfg.Extraction.DocConcurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, doc := range docs {
		g.Go(func() error {
			records, err := extractor.ExtractDocument(gctx, doc, rq)
			if err != nil {
				r.log.Warn("document extraction failed, skipping",
					zap.String("doc", doc.Name), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			perDoc[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if failed == len(docs) {
		return nil, fmt.Errorf("extraction failed for all %d documents", len(docs))
	}

	r.progress(progress, "writing_quotes", 55)
	merged := evidence.Merge(perDoc, evidence.MergeOptions{NoDedupe: r.cfg.Extraction.NoDedupe})
	if len(merged) == 0 {
		return nil, fmt.Errorf("no verified quotes extracted from %d documents", len(docs))
	}

	art := &QuotesArtifacts{
		RQQuotesCSV: filepath.Join(csvDir, "rq_quotes.csv"),
		MergedCSV:   filepath.Join(csvDir, "all_quotes.csv"),
	}
	if err := evidence.WriteCSV(art.RQQuotesCSV, merged, false); err != nil {
		return nil, err
	}

	// Fold in any evidence CSVs already present alongside this run's output.
	r.progress(progress, "merging_quotes", 70)
	merged, err = evidence.MergeCSVDir(csvDir, art.MergedCSV,
		evidence.MergeOptions{NoDedupe: r.cfg.Extraction.NoDedupe}, r.log)
	if err != nil {
		return nil, err
	}
	art.FinalCSV = art.MergedCSV

	if r.cfg.Ideas.Enabled {
		r.progress(progress, "synthesizing_ideas", 85)
		ideaCache, err := ideas.OpenCache(filepath.Join(r.cfg.Paths.CacheDir, "synthesis.json"))
		if err != nil {
			return nil, err
		}
		synth := ideas.NewSynthesizer(r.client, ideaCache, r.cfg.Ideas.Concurrency, r.log)
		merged = synth.Annotate(ctx, merged, rq)

		art.FinalCSV = filepath.Join(csvDir, "all_quotes_with_ideas.csv")
		if err := evidence.WriteCSV(art.FinalCSV, merged, true); err != nil {
			return nil, err
		}
	}

	art.Records = merged
	r.progress(progress, "quotes_done", 100)
	return art, nil
}
