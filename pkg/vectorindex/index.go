package vectorindex

import (
	"context"
	"fmt"

	"textbook-rag-be/pkg/store"
)

// NoThreshold disables score gating in Search.
const NoThreshold = -1.0

// DefaultSearchLimit is used by every backend when Search gets limit <= 0.
const DefaultSearchLimit = 5

// Index stores chunk vectors with their payload and answers similarity queries.
type Index interface {
	// EnsureCollection creates the collection only when it does not exist yet.
	EnsureCollection(ctx context.Context) error
	// Search returns at most limit hits with score >= scoreThreshold, best first.
	// A limit <= 0 means DefaultSearchLimit. No qualifying hit is an empty
	// result, not an error.
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]store.ScoredChunk, error)
	// Upsert writes points whose IDs are their position in chunks and returns
	// once the write is visible to Search.
	Upsert(ctx context.Context, chunks []store.EmbeddedChunk) error
	Info(ctx context.Context) (CollectionInfo, error)
	// Recreate drops and recreates the collection.
	Recreate(ctx context.Context) error
}

type CollectionInfo struct {
	Name        string `json:"name"`
	PointsCount int64  `json:"pointsCount"`
	Status      string `json:"status"`
	Dimension   int    `json:"dimension"`
}

// StatusError is a non-2xx answer from a remote index.
type StatusError struct {
	Backend    string
	Operation  string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Backend, e.Operation, e.StatusCode, e.Message)
}

func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// SearchLimit resolves the limit passed to Search.
func SearchLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}

// CheckVectors rejects vectors whose size differs from the collection's.
func CheckVectors(dimension int, chunks []store.EmbeddedChunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != dimension {
			return fmt.Errorf("chunk %s: vector has %d dimensions, collection expects %d", c.ID, len(c.Embedding), dimension)
		}
	}
	return nil
}
