package review

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"veritas/internal/llm"
)

var footnoteMarkerRe = regexp.MustCompile(`\[\^(\d+)\]`)

// maxFootnote returns the highest footnote marker number in text, 0 when
// none exist.
func maxFootnote(text string) int {
	max := 0
	for _, m := range footnoteMarkerRe.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

// hasReferencesSection reports whether the draft already carries a
// References or Bibliography heading.
func hasReferencesSection(text string) bool {
	lower := strings.ToLower(text)
	for _, h := range []string{"# references", "## references", "# bibliography", "## bibliography"} {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

const expandSystemPrompt = `You are an academic writer. You expand one outline section at a time into
polished prose for a research paper. Cite evidence with markdown footnotes [^n].
Use only the supplied evidence pack; never introduce facts from outside it.
Do not repeat content already written in previous sections.`

// ExpanderConfig bounds the generated paper's length.
type ExpanderConfig struct {
	MinWords int
	MaxWords int
}

// DefaultExpanderConfig matches production paper-length tuning.
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{MinWords: 1400, MaxWords: 2400}
}

// Expander writes the paper section by section. Sections are processed
// strictly in outline order as a fold: each call sees everything written so
// far, so content is not repeated and footnote numbering continues
// monotonically across the whole document.
type Expander struct {
	client llm.Client
	config ExpanderConfig
	log    *zap.Logger
}

// NewExpander builds an Expander; log may be nil.
func NewExpander(client llm.Client, config ExpanderConfig, log *zap.Logger) *Expander {
	if config.MaxWords <= 0 {
		config = DefaultExpanderConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Expander{client: client, config: config, log: log}
}

// Expand produces the full draft. A failed section call is fatal: a paper
// with silently missing sections is worse than no paper. If the accumulated
// text ends without a References section, one is appended mechanically from
// the citation set so references are never omitted.
func (e *Expander) Expand(ctx context.Context, researchQuestion string, outline *Outline, items []EvidenceItem) (string, error) {
	if outline == nil || len(outline.Sections) == 0 {
		return "", fmt.Errorf("outline has no sections")
	}
	perSection := e.config.MaxWords / len(outline.Sections)

	var draft strings.Builder
	fmt.Fprintf(&draft, "# %s\n", strings.TrimSpace(outline.Thesis))

	for i, sec := range outline.Sections {
		prior := draft.String()
		nextFootnote := maxFootnote(prior) + 1

		e.log.Info("expanding section",
			zap.Int("n", i+1),
			zap.Int("total", len(outline.Sections)),
			zap.String("heading", sec.Heading),
			zap.Int("next_footnote", nextFootnote))

		text, err := e.expandSection(ctx, researchQuestion, sec, items, prior, nextFootnote, perSection)
		if err != nil {
			return "", fmt.Errorf("expand section %q: %w", sec.Heading, err)
		}
		draft.WriteString("\n\n")
		draft.WriteString(strings.TrimSpace(text))
	}

	out := draft.String()
	if !hasReferencesSection(out) {
		out += "\n\n## References\n\n" + ReferencesText(items) + "\n"
	}
	return out, nil
}

func (e *Expander) expandSection(ctx context.Context, rq string, sec Section, items []EvidenceItem, prior string, nextFootnote, wordBudget int) (string, error) {
	var claims strings.Builder
	for _, c := range sec.Claims {
		fmt.Fprintf(&claims, "- %s (evidence: %s", c.Claim, strings.Join(c.EvidenceIDs, ", "))
		if len(c.QuoteOnlyIDs) > 0 {
			fmt.Fprintf(&claims, "; quote directly: %s", strings.Join(c.QuoteOnlyIDs, ", "))
		}
		claims.WriteString(")\n")
		if strings.TrimSpace(c.AnalysisNotes) != "" {
			fmt.Fprintf(&claims, "  notes: %s\n", c.AnalysisNotes)
		}
	}

	user := fmt.Sprintf(`RESEARCH QUESTION:
%s

EVIDENCE PACK:
%s

PAPER SO FAR (do not repeat this content):
%s

SECTION TO WRITE:
Heading: %s
Purpose: %s
Claims:
%s
TASK:
Write this section (~%d words) as markdown, starting with "## %s".
Footnote numbering MUST start at [^%d] and increase by one per new footnote.
For each footnote used, append its definition line at the end of the section, e.g.:
[^%d]: Smith, 2021, p. 4.
Use the evidence footnote forms from the pack. Return only the section text.`,
		rq, packWithFootnotes(items), prior, sec.Heading, sec.Purpose, claims.String(),
		wordBudget, sec.Heading, nextFootnote, nextFootnote)

	return e.client.Chat(ctx, expandSystemPrompt, user)
}

// packWithFootnotes renders the pack including each item's footnote form so
// the writer can emit correct definitions.
func packWithFootnotes(items []EvidenceItem) string {
	lines := make([]string, 0, len(items))
	for _, e := range items {
		body := e.Idea
		if strings.TrimSpace(body) == "" {
			body = e.Quote
		}
		lines = append(lines, fmt.Sprintf("[%s] %s (p. %d) — footnote: %s, p. %d", e.ID, body, e.Page, e.Footnote, e.Page))
	}
	return strings.Join(lines, "\n")
}
