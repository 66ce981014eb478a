package review

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"veritas/internal/evidence"
	"veritas/internal/llm"
)

const summarySystemPrompt = "You are a research assistant. Given a research question and a list of verbatim quotes " +
	"from sources, write ONE short paragraph (3-5 sentences) that summarizes the key evidence " +
	"and how it relates to the research question. Use neutral academic tone. Do not invent facts."

// defaultSummaryQuotes caps how many evidence rows reach the summary prompt.
const defaultSummaryQuotes = 30

// noEvidenceSummary is returned without a model call when the evidence set
// is empty; callers surface it verbatim to the user.
const noEvidenceSummary = "No relevant evidence was found for this question."

// Summarizer produces the one-paragraph executive summary shown to the user
// ahead of the full paper.
type Summarizer struct {
	client    llm.Client
	maxQuotes int
	log       *zap.Logger
}

// NewSummarizer builds a Summarizer. maxQuotes <= 0 takes the default; log
// may be nil.
func NewSummarizer(client llm.Client, maxQuotes int, log *zap.Logger) *Summarizer {
	if maxQuotes <= 0 {
		maxQuotes = defaultSummaryQuotes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Summarizer{client: client, maxQuotes: maxQuotes, log: log}
}

// Summarize writes one paragraph over the first maxQuotes evidence records,
// preferring the paraphrased idea over the raw quote per record. An empty
// evidence set yields a fixed sentence with no model call.
func (s *Summarizer) Summarize(ctx context.Context, records []evidence.Record, researchQuestion string) (string, error) {
	var usable []evidence.Record
	for _, r := range records {
		if strings.TrimSpace(r.Quote) != "" {
			usable = append(usable, r)
		}
	}
	if len(usable) == 0 {
		return noEvidenceSummary, nil
	}
	if len(usable) > s.maxQuotes {
		usable = usable[:s.maxQuotes]
	}

	lines := make([]string, 0, len(usable))
	for _, r := range usable {
		if idea := strings.TrimSpace(r.Idea); idea != "" {
			lines = append(lines, fmt.Sprintf("- [%s]: %s", r.Filename, idea))
			continue
		}
		quote := strings.TrimSpace(r.Quote)
		if len(quote) > 200 {
			quote = quote[:200] + "..."
		}
		lines = append(lines, fmt.Sprintf("- [%s]: %q", r.Filename, quote))
	}

	user := fmt.Sprintf(`Research question: %s

Evidence from sources (quotes/ideas):
%s

Task: Write one short paragraph summarizing what this evidence shows regarding the research question.`,
		researchQuestion, strings.Join(lines, "\n"))

	raw, err := s.client.Chat(ctx, summarySystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("summarize evidence: %w", err)
	}
	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", fmt.Errorf("summarize evidence: empty model response")
	}
	s.log.Info("evidence summary generated", zap.Int("rows", len(usable)))
	return summary, nil
}
