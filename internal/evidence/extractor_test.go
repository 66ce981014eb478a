package evidence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient answers every chat with a fixed response and counts calls.
type stubClient struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
}

func (s *stubClient) Chat(ctx context.Context, system, user string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.response, s.err
}

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestExtractDocument_VerifiesAndRelocates(t *testing.T) {
	doc := docWithPages("a.pdf",
		"Opening remarks.",
		"Middle filler.",
		"PFAS persist in groundwater for decades.")
	doc.ContentHash = "hash-a"

	// Model hints page 2; the verifier must move the quote to page 3.
	client := &stubClient{response: `{"quotes":[{"page":2,"quote":"PFAS persist in groundwater for decades."}]}`}
	ex := NewExtractor(client, nil, DefaultExtractorConfig(), nil)

	records, err := ex.ExtractDocument(context.Background(), doc, "How long do PFAS persist?")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].PageNumber)
	assert.Equal(t, "a.pdf", records[0].Filename)
}

func TestExtractDocument_FailsClosedOnGarbage(t *testing.T) {
	doc := docWithPages("a.pdf", "some page text")
	doc.ContentHash = "hash-b"

	client := &stubClient{response: "I could not produce JSON, sorry!"}
	ex := NewExtractor(client, nil, DefaultExtractorConfig(), nil)

	records, err := ex.ExtractDocument(context.Background(), doc, "rq")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtractDocument_EmptyDocumentSkipsModel(t *testing.T) {
	doc := docWithPages("blank.pdf", "   ", "\n")
	client := &stubClient{response: `{"quotes":[]}`}
	ex := NewExtractor(client, nil, DefaultExtractorConfig(), nil)

	records, err := ex.ExtractDocument(context.Background(), doc, "rq")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, client.callCount())
}

func TestExtractDocument_CacheHitSkipsCalls(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	doc := docWithPages("a.pdf", "the quick brown fox jumps")
	doc.ContentHash = "hash-c"

	client := &stubClient{response: `{"quotes":[{"page":1,"quote":"the quick brown fox jumps"}]}`}
	ex := NewExtractor(client, cache, DefaultExtractorConfig(), nil)

	first, err := ex.ExtractDocument(context.Background(), doc, "rq")
	require.NoError(t, err)
	require.Len(t, first, 1)
	callsAfterFirst := client.callCount()
	require.Positive(t, callsAfterFirst)

	second, err := ex.ExtractDocument(context.Background(), doc, "rq")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, client.callCount(), "cache hit must not call the model")

	// A different research question is a different cache key.
	_, err = ex.ExtractDocument(context.Background(), doc, "another question")
	require.NoError(t, err)
	assert.Greater(t, client.callCount(), callsAfterFirst)
}

func TestPerChunkBudget(t *testing.T) {
	// 25 pages of ~600 chars against a 2000-char budget forces many chunks;
	// the per-chunk quota must respect the document budget with a floor of 3.
	var texts []string
	for i := 0; i < 25; i++ {
		texts = append(texts, fmt.Sprintf("page %d ", i)+strings.Repeat("lorem ipsum ", 50))
	}
	doc := docWithPages("big.pdf", texts...)
	doc.ContentHash = "hash-d"

	client := &stubClient{response: `{"quotes":[]}`}
	cfg := DefaultExtractorConfig()
	cfg.CharsPerChunk = 2000
	ex := NewExtractor(client, nil, cfg, nil)

	_, err := ex.ExtractDocument(context.Background(), doc, "rq")
	require.NoError(t, err)
	// One model call per chunk, all chunks attempted.
	assert.Greater(t, client.callCount(), 1)
}
