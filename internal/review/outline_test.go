package review

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqClient pops scripted responses in order.
type seqClient struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
}

func (s *seqClient) Chat(ctx context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, user)
	if len(s.responses) == 0 {
		return "", nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

var packFixture = []EvidenceItem{
	{ID: "E1", Filename: "a.pdf", Page: 3, Idea: "idea one", Footnote: "A, 2020", Reference: "A. (2020)."},
	{ID: "E2", Filename: "b.pdf", Page: 5, Quote: "quote two", Footnote: "B, 2021", Reference: "B. (2021)."},
}

const outlineJSON = `{
  "thesis": "A thesis.",
  "sections": [
    {
      "heading": "Background",
      "purpose": "set context",
      "claims": [
        {"claim": "claim one", "evidence_ids": ["E1", "E99"], "quote_only_ids": ["E2"], "analysis_notes": "n"}
      ]
    }
  ]
}`

func TestPlan_DropsUnknownEvidenceIDs(t *testing.T) {
	client := &seqClient{responses: []string{outlineJSON}}
	p := NewPlanner(client, nil)

	outline, err := p.Plan(context.Background(), "rq", "topic", packFixture)
	require.NoError(t, err)
	require.Len(t, outline.Sections, 1)
	claim := outline.Sections[0].Claims[0]
	assert.Equal(t, []string{"E1"}, claim.EvidenceIDs, "E99 is not in the pack")
	assert.Equal(t, []string{"E2"}, claim.QuoteOnlyIDs)
}

func TestPlan_RetriesOnceWithStrictInstruction(t *testing.T) {
	client := &seqClient{responses: []string{"sorry, here is my thinking...", outlineJSON}}
	p := NewPlanner(client, nil)

	outline, err := p.Plan(context.Background(), "rq", "topic", packFixture)
	require.NoError(t, err)
	assert.Equal(t, "A thesis.", outline.Thesis)
	require.Len(t, client.prompts, 2)
	assert.NotContains(t, client.prompts[0], "ONLY the JSON object")
	assert.Contains(t, client.prompts[1], "ONLY the JSON object")
}

func TestPlan_FatalAfterSecondParseFailure(t *testing.T) {
	client := &seqClient{responses: []string{"nope", "still nope"}}
	p := NewPlanner(client, nil)

	_, err := p.Plan(context.Background(), "rq", "topic", packFixture)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable")
}

func TestPlan_EmptyOutlineIsFatal(t *testing.T) {
	client := &seqClient{responses: []string{`{"thesis": "t", "sections": []}`}}
	p := NewPlanner(client, nil)

	_, err := p.Plan(context.Background(), "rq", "topic", packFixture)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sections")
}

func TestOutlinePrompt_CarriesPack(t *testing.T) {
	client := &seqClient{responses: []string{outlineJSON}}
	p := NewPlanner(client, nil)

	_, err := p.Plan(context.Background(), "the question", "the topic", packFixture)
	require.NoError(t, err)
	require.NotEmpty(t, client.prompts)
	prompt := client.prompts[0]
	assert.True(t, strings.Contains(prompt, "[E1] idea one (p. 3)"))
	assert.True(t, strings.Contains(prompt, "the question"))
}
