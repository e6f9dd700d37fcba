package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"textbook-rag-be/pkg/store"
	"textbook-rag-be/pkg/vectorindex"
)

// upsertBatchSize bounds the number of points sent per request.
const upsertBatchSize = 100

// Index is a minimal REST client for one Qdrant collection using cosine distance.
type Index struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

var _ vectorindex.Index = (*Index)(nil)

func New(cfg Config) (*Index, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant: URL is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant: invalid dimension %d", cfg.Dimension)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Index{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type point struct {
	ID      int             `json:"id"`
	Vector  []float32       `json:"vector"`
	Payload store.TextChunk `json:"payload"`
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	ScoreThreshold *float64  `json:"score_threshold,omitempty"`
}

type searchResponse struct {
	Result []struct {
		Score   float64         `json:"score"`
		Payload store.TextChunk `json:"payload"`
	} `json:"result"`
}

type collectionResponse struct {
	Result struct {
		Status      string `json:"status"`
		PointsCount *int64 `json:"points_count"`
	} `json:"result"`
}

type updateResponse struct {
	Result struct {
		Status string `json:"status"`
	} `json:"result"`
}

func (s *Index) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Index) EnsureCollection(ctx context.Context) error {
	exists, err := s.exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.create(ctx)
}

func (s *Index) Recreate(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	return s.create(ctx)
}

func (s *Index) exists(ctx context.Context) (bool, error) {
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Index) create(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
	return err
}

func (s *Index) Upsert(ctx context.Context, chunks []store.EmbeddedChunk) error {
	if err := vectorindex.CheckVectors(s.dimension, chunks); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, point{ID: i, Vector: chunks[i].Embedding, Payload: chunks[i].TextChunk})
		}

		var resp updateResponse
		if _, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, &resp); err != nil {
			return err
		}
		if resp.Result.Status != "" && resp.Result.Status != "completed" {
			return fmt.Errorf("qdrant upsert not completed: %s", resp.Result.Status)
		}
	}
	return nil
}

func (s *Index) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]store.ScoredChunk, error) {
	limit = vectorindex.SearchLimit(limit)
	req := searchRequest{Vector: vector, Limit: limit, WithPayload: true}
	if scoreThreshold >= 0 {
		req.ScoreThreshold = &scoreThreshold
	}

	var resp searchResponse
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}

	results := make([]store.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, store.ScoredChunk{TextChunk: r.Payload, Score: r.Score})
	}
	return results, nil
}

func (s *Index) Info(ctx context.Context) (vectorindex.CollectionInfo, error) {
	info := vectorindex.CollectionInfo{Name: s.collection, Dimension: s.dimension}

	var resp collectionResponse
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, &resp)
	if status == http.StatusNotFound {
		info.Status = "missing"
		return info, nil
	}
	if err != nil {
		return info, err
	}

	info.Status = resp.Result.Status
	if resp.Result.PointsCount != nil {
		info.PointsCount = *resp.Result.PointsCount
	}
	return info, nil
}

// do sends one request and decodes the body into out when non-nil. The status
// code is returned even when err is set so callers can special-case 404.
func (s *Index) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("qdrant: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &vectorindex.StatusError{
			Backend:    "qdrant",
			Operation:  method + " " + strings.TrimPrefix(url, s.url),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
