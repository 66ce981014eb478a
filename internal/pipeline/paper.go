package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"veritas/internal/citation"
	"veritas/internal/document"
	"veritas/internal/evidence"
	"veritas/internal/review"
)

// PaperArtifacts names the files the paper pipeline writes.
type PaperArtifacts struct {
	PaperMD       string `json:"paper_md"`
	CitationsJSON string `json:"citations_json"`

	Draft   string             `json:"-"`
	Verdict review.GradeResult `json:"-"`
}

// RunPaper executes citations → evidence pack → outline → expansion →
// grade/revise over an already extracted record set. An empty record set is
// fatal: there is nothing defensible to write.
func (r *Runner) RunPaper(ctx context.Context, rq, topic, papersDir, outDir string, records []evidence.Record, progress ProgressFunc) (*PaperArtifacts, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no evidence records to write from")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	r.progress(progress, "building_citations", 1)
	docs, err := document.LoadDir(papersDir)
	if err != nil {
		return nil, err
	}
	builder := citation.NewBuilder(r.client, r.cfg.Paper.Concurrency, r.log)
	citations := builder.Build(ctx, docs)

	art := &PaperArtifacts{
		PaperMD:       filepath.Join(outDir, "paper.md"),
		CitationsJSON: filepath.Join(outDir, "citations.json"),
	}
	if err := citations.Save(art.CitationsJSON); err != nil {
		return nil, err
	}

	items := review.BuildPack(records, citations)

	r.progress(progress, "planning_outline", 30)
	planner := review.NewPlanner(r.client, r.log)
	outline, err := planner.Plan(ctx, rq, topic, items)
	if err != nil {
		return nil, err
	}
	r.log.Info("outline planned", zap.Int("sections", len(outline.Sections)))

	r.progress(progress, "writing_sections", 55)
	expCfg := review.ExpanderConfig{MinWords: r.cfg.Paper.MinWords, MaxWords: r.cfg.Paper.MaxWords}
	expander := review.NewExpander(r.client, expCfg, r.log)
	draft, err := expander.Expand(ctx, rq, outline, items)
	if err != nil {
		return nil, err
	}

	r.progress(progress, "grading", 85)
	loop := review.NewLoop(
		review.NewGrader(r.client, expCfg, r.log),
		review.NewReviser(r.client, r.log),
		r.cfg.Paper.MaxIters,
		r.log,
	)
	result := loop.Run(ctx, draft, rq, items)
	art.Draft = result.Draft
	art.Verdict = result.Verdict

	if err := os.WriteFile(art.PaperMD, []byte(result.Draft), 0o644); err != nil {
		return nil, fmt.Errorf("write paper: %w", err)
	}

	r.progress(progress, "paper_done", 100)
	r.log.Info("paper written",
		zap.String("path", art.PaperMD),
		zap.Int("score", result.Verdict.Score),
		zap.Int("gradings", result.Iterations))
	return art, nil
}
