package review

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"veritas/internal/llm"
)

// GradeResult is the grader's structured verdict over one draft.
type GradeResult struct {
	Satisfactory bool     `json:"satisfactory"`
	Score        int      `json:"score"`
	MajorIssues  []string `json:"major_issues"`
	MinorIssues  []string `json:"minor_issues"`
	RevisionPlan string   `json:"revision_plan"`
}

const gradeSystemPrompt = `You are a strict academic grader. Grade the draft against this rubric:
1. Thesis: clear, answerable, sustained throughout.
2. Structure: logical section progression, no repetition.
3. Evidence discipline: every factual claim is footnoted to the evidence pack; no un-sourced claims.
4. Footnote correctness: markers [^n] are sequential from 1 with matching definitions.
5. Length: within the stated word range.
Return ONLY valid JSON.`

const gradeStrictSuffix = "\n\nIMPORTANT: Your previous answer was not parseable. Respond with ONLY the JSON object, no prose, no markdown fences."

// Grader scores drafts against the fixed rubric.
type Grader struct {
	client llm.Client
	config ExpanderConfig
	log    *zap.Logger
}

// NewGrader builds a Grader; log may be nil.
func NewGrader(client llm.Client, config ExpanderConfig, log *zap.Logger) *Grader {
	if config.MaxWords <= 0 {
		config = DefaultExpanderConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Grader{client: client, config: config, log: log}
}

// Grade returns the verdict for a draft. An unparseable response gets one
// strict-JSON retry; a second failure returns an error so the loop can
// degrade gracefully rather than crash.
func (g *Grader) Grade(ctx context.Context, draft, researchQuestion string, items []EvidenceItem) (GradeResult, error) {
	user := fmt.Sprintf(`RESEARCH QUESTION:
%s

WORD RANGE: %d-%d

EVIDENCE PACK:
%s

DRAFT:
%s

OUTPUT FORMAT:
Return ONLY valid JSON:
{
  "satisfactory": false,
  "score": 0,
  "major_issues": ["..."],
  "minor_issues": ["..."],
  "revision_plan": "concrete ordered steps"
}`, researchQuestion, g.config.MinWords, g.config.MaxWords, PackText(items), draft)

	var verdict GradeResult
	raw, err := g.client.Chat(ctx, gradeSystemPrompt, user)
	if err != nil {
		return GradeResult{}, fmt.Errorf("grade call: %w", err)
	}
	if !llm.DecodeJSON(raw, &verdict) {
		g.log.Warn("grade response unparseable, retrying with strict instruction")
		raw, err = g.client.Chat(ctx, gradeSystemPrompt, user+gradeStrictSuffix)
		if err != nil {
			return GradeResult{}, fmt.Errorf("grade retry call: %w", err)
		}
		verdict = GradeResult{}
		if !llm.DecodeJSON(raw, &verdict) {
			return GradeResult{}, fmt.Errorf("grade response unparseable after strict retry")
		}
	}
	return verdict, nil
}

const reviseSystemPrompt = `You are an academic writer revising a draft after grading. Apply the revision
plan and fix the listed issues. Cite evidence with markdown footnotes [^n],
renumbering sequentially from 1 if needed. Use ONLY the supplied evidence
pack and references; never add claims beyond them. Return the complete
revised draft, nothing else.`

// Reviser rewrites a draft according to grader feedback, bounded to the
// evidence pack and references to limit hallucination.
type Reviser struct {
	client llm.Client
	log    *zap.Logger
}

// NewReviser builds a Reviser; log may be nil.
func NewReviser(client llm.Client, log *zap.Logger) *Reviser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reviser{client: client, log: log}
}

// Revise applies a verdict to a draft and returns the new draft.
func (r *Reviser) Revise(ctx context.Context, draft string, verdict GradeResult, items []EvidenceItem) (string, error) {
	user := fmt.Sprintf(`EVIDENCE PACK:
%s

REFERENCES:
%s

GRADER VERDICT:
score: %d
major issues:
%s
minor issues:
%s
revision plan:
%s

CURRENT DRAFT:
%s`, packWithFootnotes(items), ReferencesText(items), verdict.Score,
		bulleted(verdict.MajorIssues), bulleted(verdict.MinorIssues), verdict.RevisionPlan, draft)

	revised, err := r.client.Chat(ctx, reviseSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("revise call: %w", err)
	}
	revised = strings.TrimSpace(revised)
	if revised == "" {
		return "", fmt.Errorf("reviser returned empty draft")
	}
	return revised, nil
}

func bulleted(items []string) string {
	if len(items) == 0 {
		return "- none"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return strings.TrimRight(b.String(), "\n")
}
