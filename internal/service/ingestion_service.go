package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/pkg/embedding"
	"textbook-rag-be/pkg/rag/chunker"
	"textbook-rag-be/pkg/store"
	"textbook-rag-be/pkg/vectorindex"

	"golang.org/x/time/rate"
)

var chapterFilePattern = regexp.MustCompile(`^chapter-(\d+)`)

var ErrNoChapterFiles = errors.New("no chapter files found")

// ChapterFile is one markdown file of the book.
type ChapterFile struct {
	Path          string
	ChapterNumber int
}

type IngestOptions struct {
	// Recreate drops the collection before writing.
	Recreate bool
	// OnProgress is called after each embedded batch.
	OnProgress func(embedded, total int)
}

type IngestReport struct {
	Files    []ChapterFile
	Chunks   int
	Chapters []int
	Duration time.Duration
}

type IIngestionService interface {
	Run(ctx context.Context, dir string, opts IngestOptions) (*IngestReport, error)
}

type ingestionService struct {
	chunker   *chunker.Chunker
	embedder  embedding.EmbeddingProvider
	index     vectorindex.Index
	batchSize int
	limiter   *rate.Limiter
	logger    logger.ILogger
}

// NewIngestionService builds the indexing pipeline. requestsPerSecond caps
// embedding calls, zero or less means unlimited.
func NewIngestionService(
	chunk *chunker.Chunker,
	embedder embedding.EmbeddingProvider,
	index vectorindex.Index,
	batchSize int,
	requestsPerSecond float64,
	log logger.ILogger,
) IIngestionService {
	if batchSize <= 0 {
		batchSize = 20
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &ingestionService{
		chunker:   chunk,
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    log,
	}
}

// FindChapterFiles lists chapter-N*.md files plus intro.md as chapter 0,
// ordered by chapter number.
func FindChapterFiles(dir string) ([]ChapterFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read docs directory: %w", err)
	}

	var files []ChapterFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}

		if m := chapterFilePattern.FindStringSubmatch(name); m != nil {
			number, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			files = append(files, ChapterFile{Path: filepath.Join(dir, name), ChapterNumber: number})
			continue
		}
		if name == "intro.md" {
			files = append(files, ChapterFile{Path: filepath.Join(dir, name), ChapterNumber: 0})
		}
	}

	slices.SortStableFunc(files, func(a, b ChapterFile) int {
		return a.ChapterNumber - b.ChapterNumber
	})
	return files, nil
}

func (s *ingestionService) Run(ctx context.Context, dir string, opts IngestOptions) (*IngestReport, error) {
	started := time.Now()

	files, err := FindChapterFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChapterFiles, dir)
	}
	s.logger.Info("INGEST", "Found chapter files", map[string]interface{}{"dir": dir, "files": len(files)})

	docs := make([]chunker.Document, 0, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
		}
		docs = append(docs, chunker.Document{Content: string(content), ChapterNumber: f.ChapterNumber})
	}

	chunks := s.chunker.ChunkAll(docs)
	s.logger.Info("INGEST", "Chunked chapters", map[string]interface{}{"chunks": len(chunks)})

	embedded, err := s.embedAll(ctx, chunks, opts.OnProgress)
	if err != nil {
		return nil, err
	}

	if opts.Recreate {
		err = s.index.Recreate(ctx)
	} else {
		err = s.index.EnsureCollection(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare collection: %w", err)
	}

	if err := s.index.Upsert(ctx, embedded); err != nil {
		return nil, fmt.Errorf("failed to upsert chunks: %w", err)
	}

	report := &IngestReport{
		Files:    files,
		Chunks:   len(embedded),
		Duration: time.Since(started),
	}
	for _, f := range files {
		report.Chapters = append(report.Chapters, f.ChapterNumber)
	}

	s.logger.Info("INGEST", "Indexing complete", map[string]interface{}{
		"chunks":      report.Chunks,
		"chapters":    report.Chapters,
		"duration_ms": report.Duration.Milliseconds(),
	})
	return report, nil
}

func (s *ingestionService) embedAll(ctx context.Context, chunks []store.TextChunk, progress func(int, int)) ([]store.EmbeddedChunk, error) {
	out := make([]store.EmbeddedChunk, 0, len(chunks))

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		batch := chunks[start:end]

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			s.logger.Error("INGEST", "Embedding batch failed", map[string]interface{}{"from": start, "to": end, "error": err.Error()})
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding provider returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		for i, c := range batch {
			out = append(out, store.EmbeddedChunk{TextChunk: c, Embedding: vectors[i]})
		}
		if progress != nil {
			progress(len(out), len(chunks))
		}
	}

	return out, nil
}
