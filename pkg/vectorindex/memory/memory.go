package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"textbook-rag-be/pkg/store"
	"textbook-rag-be/pkg/vectorindex"
)

// Index is an in-process vector index using brute-force cosine similarity.
type Index struct {
	mu        sync.RWMutex
	name      string
	dimension int
	exists    bool
	points    map[int]store.EmbeddedChunk
}

var _ vectorindex.Index = (*Index)(nil)

func New(name string, dimension int) *Index {
	return &Index{name: name, dimension: dimension, points: make(map[int]store.EmbeddedChunk)}
}

func (s *Index) EnsureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = true
	return nil
}

func (s *Index) Recreate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = make(map[int]store.EmbeddedChunk)
	s.exists = true
	return nil
}

func (s *Index) Upsert(ctx context.Context, chunks []store.EmbeddedChunk) error {
	if err := vectorindex.CheckVectors(s.dimension, chunks); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		s.points[i] = c
	}
	return nil
}

func (s *Index) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]store.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		id    int
		score float64
	}
	hits := make([]hit, 0, len(s.points))
	for id, p := range s.points {
		score := cosine(p.Embedding, vector)
		if scoreThreshold >= 0 && score < scoreThreshold {
			continue
		}
		hits = append(hits, hit{id: id, score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score == hits[j].score {
			return hits[i].id < hits[j].id
		}
		return hits[i].score > hits[j].score
	})
	if limit = vectorindex.SearchLimit(limit); len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]store.ScoredChunk, len(hits))
	for i, h := range hits {
		results[i] = store.ScoredChunk{TextChunk: s.points[h.id].TextChunk, Score: h.score}
	}
	return results, nil
}

func (s *Index) Info(ctx context.Context) (vectorindex.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := "missing"
	if s.exists {
		status = "green"
	}
	return vectorindex.CollectionInfo{
		Name:        s.name,
		PointsCount: int64(len(s.points)),
		Status:      status,
		Dimension:   s.dimension,
	}, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
