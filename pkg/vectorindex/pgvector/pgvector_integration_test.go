package pgvector

import (
	"context"
	"log"
	"os"
	"testing"

	"textbook-rag-be/pkg/database"
	"textbook-rag-be/pkg/store"
	"textbook-rag-be/pkg/vectorindex"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestIndex drops text_chunks, so point DB_CONNECTION_STRING at a test database.
func newTestIndex(t *testing.T) *Index {
	t.Helper()

	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)

	idx, err := New(db, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Recreate(context.Background()))
	return idx
}

func point(id, content string, vec ...float32) store.EmbeddedChunk {
	return store.EmbeddedChunk{
		TextChunk: store.TextChunk{ID: id, ChapterNumber: 1, SectionID: "1.1", Content: content},
		Embedding: vec,
	}
}

func TestPgvectorIndexIntegration(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.EnsureCollection(ctx))
	require.NoError(t, idx.EnsureCollection(ctx))

	require.NoError(t, idx.Upsert(ctx, []store.EmbeddedChunk{
		point("orthogonal", "unrelated", 0, 1, 0),
		point("exact", "same direction", 1, 0, 0),
		point("close", "nearby", 1, 0.5, 0),
	}))

	info, err := idx.Info(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, info.PointsCount)
	assert.Equal(t, "green", info.Status)
	assert.Equal(t, 3, info.Dimension)

	t.Run("Threshold gates and orders best first", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{1, 0, 0}, 5, 0.3)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "exact", hits[0].ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
		assert.Equal(t, "close", hits[1].ID)
		assert.GreaterOrEqual(t, hits[1].Score, 0.3)
		assert.Equal(t, "same direction", hits[0].Content)
	})

	t.Run("Limit caps the result", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{1, 0, 0}, 1, 0.3)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "exact", hits[0].ID)
	})

	t.Run("NoThreshold returns every point", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{1, 0, 0}, 5, vectorindex.NoThreshold)
		require.NoError(t, err)
		assert.Len(t, hits, 3)
		assert.Equal(t, "orthogonal", hits[2].ID)
	})

	t.Run("Nothing above threshold is empty", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{0, 0, 1}, 5, 0.3)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("Upsert overwrites by position", func(t *testing.T) {
		require.NoError(t, idx.Upsert(ctx, []store.EmbeddedChunk{
			point("orthogonal-v2", "replaced", 0, 1, 0),
		}))

		info, err := idx.Info(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, info.PointsCount)

		hits, err := idx.Search(ctx, []float32{0, 1, 0}, 1, 0.9)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "orthogonal-v2", hits[0].ID)
		assert.Equal(t, "replaced", hits[0].Content)
	})

	t.Run("Recreate empties the table", func(t *testing.T) {
		require.NoError(t, idx.Recreate(ctx))

		info, err := idx.Info(ctx)
		require.NoError(t, err)
		assert.Zero(t, info.PointsCount)
	})
}

func TestUpsertRejectsWrongDimensionBeforeWriting(t *testing.T) {
	idx, err := New(nil, 3)
	assert.Nil(t, idx)
	require.Error(t, err)

	idx = &Index{dimension: 3}
	err = idx.Upsert(context.Background(), []store.EmbeddedChunk{point("short", "x", 1, 0)})
	assert.Error(t, err)
}
