package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/pkg/store"
	"textbook-rag-be/pkg/vectorindex/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

func seededIndex(t *testing.T) *memory.Index {
	idx := memory.New("textbook_chunks", 2)
	require.NoError(t, idx.Upsert(context.Background(), []store.EmbeddedChunk{
		{TextChunk: store.TextChunk{ID: "ch4_sec1_0", ChapterNumber: 4, SectionTitle: "Motors"}, Embedding: []float32{1, 0}},
		{TextChunk: store.TextChunk{ID: "ch3_sec2_0", ChapterNumber: 3, SectionTitle: "Lidar"}, Embedding: []float32{0.8, 0.6}},
		{TextChunk: store.TextChunk{ID: "ch9_sec1_0", ChapterNumber: 9, SectionTitle: "Appendix"}, Embedding: []float32{0, 1}},
	}))
	return idx
}

func newRetriever(t *testing.T, emb *fakeEmbedder) *Retriever {
	return NewRetriever(emb, seededIndex(t), nil, DefaultConfig(), logger.NewNopLogger())
}

func TestRetrieveForQueryReturnsSourcesInScoreOrder(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"how do motors work": {1, 0}}}

	result, err := newRetriever(t, emb).RetrieveForQuery(context.Background(), "how do motors work")

	require.NoError(t, err)
	assert.False(t, result.OutOfScope)
	require.Len(t, result.Chunks, 2)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, store.SourceReference{
		ChunkID:        "ch4_sec1_0",
		ChapterNumber:  4,
		SectionTitle:   "Motors",
		URL:            "/chapter-4-actuators-movement",
		RelevanceScore: result.Chunks[0].Score,
	}, result.Sources[0])
	assert.Equal(t, "/chapter-3-sensors-perception", result.Sources[1].URL)
}

func TestRetrieveForQueryOutOfScopeWhenNothingPassesThreshold(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"best pizza in Naples": {-1, 0}}}

	result, err := newRetriever(t, emb).RetrieveForQuery(context.Background(), "best pizza in Naples")

	require.NoError(t, err)
	assert.True(t, result.OutOfScope)
	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.Sources)
}

func TestRetrieveForSelectionIgnoresScore(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"unrelated selection": {-1, 0}}}

	result, err := newRetriever(t, emb).RetrieveForSelection(context.Background(), "unrelated selection")

	require.NoError(t, err)
	assert.False(t, result.OutOfScope)
	assert.Len(t, result.Chunks, 2)
	assert.Equal(t, []string{"unrelated selection"}, emb.calls)
}

func TestRetrieveWrapsEmbeddingFailure(t *testing.T) {
	cause := errors.New("rate limit exceeded")
	emb := &fakeEmbedder{err: cause}

	_, err := newRetriever(t, emb).RetrieveForQuery(context.Background(), "q")

	assert.ErrorIs(t, err, cause)
}

func TestSourceMapperFallbackSlug(t *testing.T) {
	m := NewSourceMapper(nil)

	assert.Equal(t, "/intro", m.URL(0))
	assert.Equal(t, "/chapter-6-applications-case-studies", m.URL(6))
	assert.Equal(t, "/chapter-9", m.URL(9))
}

func TestLoadSourceMapperFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chapters:\n  - number: 1\n    slug: kinematics\n    title: Kinematics\n"), 0o644))

	m, err := LoadSourceMapper(path)

	require.NoError(t, err)
	assert.Equal(t, "/kinematics", m.URL(1))
	assert.Equal(t, "/chapter-2", m.URL(2))
}

func TestLoadSourceMapperRejectsMissingSlug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chapters:\n  - number: 1\n"), 0o644))

	_, err := LoadSourceMapper(path)

	assert.Error(t, err)
}

func TestLoadSourceMapperDefaultsWithoutPath(t *testing.T) {
	m, err := LoadSourceMapper("")

	require.NoError(t, err)
	assert.Equal(t, "intro", m.Slug(0))
}
