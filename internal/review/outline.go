package review

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"veritas/internal/llm"
)

// Claim is one evidenced assertion inside an outline section.
type Claim struct {
	Claim         string   `json:"claim"`
	EvidenceIDs   []string `json:"evidence_ids"`
	QuoteOnlyIDs  []string `json:"quote_only_ids"`
	AnalysisNotes string   `json:"analysis_notes"`
}

// Section is one planned unit of the paper.
type Section struct {
	Heading string  `json:"heading"`
	Purpose string  `json:"purpose"`
	Claims  []Claim `json:"claims"`
}

// Outline is the claim graph produced before any prose is written. Every
// evidence id it references exists in the pack it was planned against.
type Outline struct {
	Thesis   string    `json:"thesis"`
	Sections []Section `json:"sections"`
}

const outlineSystemPrompt = `You are an academic writing planner. You design paper outlines as claim graphs.
Every claim must cite evidence ids from the provided pack. Never invent evidence ids.
Return ONLY valid JSON.`

const outlineStrictSuffix = "\n\nIMPORTANT: Your previous answer was not parseable. Respond with ONLY the JSON object, no prose, no markdown fences."

// Planner converts an evidence pack and research question into an Outline.
type Planner struct {
	client llm.Client
	log    *zap.Logger
}

// NewPlanner builds a Planner; log may be nil.
func NewPlanner(client llm.Client, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{client: client, log: log}
}

// Plan produces the outline. An unparseable response is retried once with a
// stricter JSON-only instruction; a second failure is fatal since there is
// no safe empty outline. Claims referencing unknown evidence ids have those
// ids dropped; a resulting outline with no sections is also fatal.
func (p *Planner) Plan(ctx context.Context, researchQuestion, topic string, items []EvidenceItem) (*Outline, error) {
	user := outlineUserPrompt(researchQuestion, topic, items)

	var outline Outline
	raw, err := p.client.Chat(ctx, outlineSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("outline call: %w", err)
	}
	if !llm.DecodeJSON(raw, &outline) {
		p.log.Warn("outline response unparseable, retrying with strict instruction")
		raw, err = p.client.Chat(ctx, outlineSystemPrompt, user+outlineStrictSuffix)
		if err != nil {
			return nil, fmt.Errorf("outline retry call: %w", err)
		}
		outline = Outline{}
		if !llm.DecodeJSON(raw, &outline) {
			return nil, fmt.Errorf("outline response unparseable after strict retry")
		}
	}

	p.validate(&outline, IDSet(items))
	if len(outline.Sections) == 0 {
		return nil, fmt.Errorf("outline has no sections")
	}
	return &outline, nil
}

// validate drops evidence ids the pack does not know. The planner operates
// over a closed vocabulary; anything outside it is a hallucination.
func (p *Planner) validate(o *Outline, known map[string]bool) {
	keep := func(ids []string) []string {
		out := ids[:0]
		for _, id := range ids {
			if known[id] {
				out = append(out, id)
			} else {
				p.log.Warn("dropping unknown evidence id from outline", zap.String("id", id))
			}
		}
		return out
	}
	for si := range o.Sections {
		for ci := range o.Sections[si].Claims {
			c := &o.Sections[si].Claims[ci]
			c.EvidenceIDs = keep(c.EvidenceIDs)
			c.QuoteOnlyIDs = keep(c.QuoteOnlyIDs)
		}
	}
}

func outlineUserPrompt(rq, topic string, items []EvidenceItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, `TOPIC: %s

RESEARCH QUESTION:
%s

EVIDENCE PACK:
%s

TASK:
Design a paper outline as a claim graph. 4-6 sections, each with 2-4 claims.
Every claim cites evidence ids from the pack above. Use "quote_only_ids" for
evidence that should appear as a direct quotation rather than paraphrase.

OUTPUT FORMAT:
Return ONLY valid JSON:
{
  "thesis": "one-sentence thesis",
  "sections": [
    {
      "heading": "Section heading",
      "purpose": "what this section establishes",
      "claims": [
        {
          "claim": "the assertion",
          "evidence_ids": ["E1", "E4"],
          "quote_only_ids": ["E4"],
          "analysis_notes": "how the evidence supports the claim"
        }
      ]
    }
  ]
}`, topic, rq, PackText(items))
	return b.String()
}
