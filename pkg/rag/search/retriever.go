package search

import (
	"context"
	"fmt"

	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/pkg/embedding"
	"textbook-rag-be/pkg/store"
	"textbook-rag-be/pkg/vectorindex"
)

// Config encapsulates retrieval parameters
type Config struct {
	TopK          int
	SelectionTopK int
	// Threshold gates standard queries. A best hit below it marks the query out of scope.
	Threshold float64
}

func DefaultConfig() Config {
	return Config{
		TopK:          3,
		SelectionTopK: 2,
		Threshold:     0.3,
	}
}

// Result is what one retrieval produced. Sources mirrors Chunks in order.
type Result struct {
	Chunks     []store.ScoredChunk
	Sources    []store.SourceReference
	OutOfScope bool
}

// Retriever embeds text, searches the index and maps hits to citations.
type Retriever struct {
	embedder embedding.EmbeddingProvider
	index    vectorindex.Index
	mapper   *SourceMapper
	config   Config
	logger   logger.ILogger
}

func NewRetriever(
	embedder embedding.EmbeddingProvider,
	index vectorindex.Index,
	mapper *SourceMapper,
	config Config,
	logger logger.ILogger,
) *Retriever {
	if mapper == nil {
		mapper = NewSourceMapper(nil)
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		mapper:   mapper,
		config:   config,
		logger:   logger,
	}
}

func (r *Retriever) Config() Config {
	return r.config
}

// Retrieve runs one embed + search round. A negative threshold disables gating.
func (r *Retriever) Retrieve(ctx context.Context, text string, topK int, threshold float64) (Result, error) {
	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("embedding generation failed: %w", err)
	}

	chunks, err := r.index.Search(ctx, vector, topK, threshold)
	if err != nil {
		r.logger.Error("RETRIEVAL", "Vector search failed", map[string]interface{}{"error": err.Error()})
		return Result{}, fmt.Errorf("vector search failed: %w", err)
	}

	result := Result{Chunks: chunks, Sources: r.mapper.ToSources(chunks)}

	details := map[string]interface{}{"hits": len(chunks), "top_k": topK}
	if len(chunks) > 0 {
		details["best_score"] = chunks[0].Score
	}
	r.logger.Debug("RETRIEVAL", "Search completed", details)

	return result, nil
}

// RetrieveForQuery is standard mode. The query is out of scope when nothing
// comes back or the best hit scores under the threshold.
func (r *Retriever) RetrieveForQuery(ctx context.Context, query string) (Result, error) {
	result, err := r.Retrieve(ctx, query, r.config.TopK, r.config.Threshold)
	if err != nil {
		return Result{}, err
	}
	result.OutOfScope = len(result.Chunks) == 0 || result.Chunks[0].Score < r.config.Threshold
	return result, nil
}

// RetrieveForSelection embeds the highlighted passage and fetches supporting
// chunks regardless of score. It never marks the result out of scope.
func (r *Retriever) RetrieveForSelection(ctx context.Context, selection string) (Result, error) {
	return r.Retrieve(ctx, selection, r.config.SelectionTopK, vectorindex.NoThreshold)
}
