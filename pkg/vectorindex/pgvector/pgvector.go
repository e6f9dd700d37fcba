package pgvector

import (
	"context"
	"fmt"

	"textbook-rag-be/internal/model"
	"textbook-rag-be/pkg/store"
	"textbook-rag-be/pkg/vectorindex"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 100

// Index keeps chunk vectors in the text_chunks table of the application database.
type Index struct {
	db        *gorm.DB
	dimension int
}

var _ vectorindex.Index = (*Index)(nil)

func New(db *gorm.DB, dimension int) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("pgvector: database connection is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("pgvector: invalid dimension %d", dimension)
	}
	return &Index{db: db, dimension: dimension}, nil
}

func (s *Index) EnsureCollection(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("pgvector: enable extension: %w", err)
	}
	if db.Migrator().HasTable(&model.TextChunk{}) {
		return nil
	}
	return db.AutoMigrate(&model.TextChunk{})
}

func (s *Index) Recreate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Migrator().DropTable(&model.TextChunk{}); err != nil {
		return fmt.Errorf("pgvector: drop table: %w", err)
	}
	return s.EnsureCollection(ctx)
}

func (s *Index) Upsert(ctx context.Context, chunks []store.EmbeddedChunk) error {
	if err := vectorindex.CheckVectors(s.dimension, chunks); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	records := make([]*model.TextChunk, len(chunks))
	for i, c := range chunks {
		records[i] = &model.TextChunk{
			PointID:       i,
			ChunkID:       c.ID,
			ChapterNumber: c.ChapterNumber,
			ChapterTitle:  c.ChapterTitle,
			SectionID:     c.SectionID,
			SectionTitle:  c.SectionTitle,
			Content:       c.Content,
			Position:      c.Position,
			TokenCount:    c.TokenCount,
			Embedding:     pgvector.NewVector(c.Embedding),
		}
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, upsertBatchSize).Error
}

func (s *Index) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]store.ScoredChunk, error) {
	limit = vectorindex.SearchLimit(limit)

	// Cosine distance in pgvector is 1 - cosine similarity.
	type result struct {
		model.TextChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)
	query := s.db.WithContext(ctx).
		Table(model.TextChunk{}.TableName()).
		Select("text_chunks.*, 1 - (embedding <=> ?) as similarity", queryVector)
	if scoreThreshold >= 0 {
		query = query.Where("1 - (embedding <=> ?) >= ?", queryVector, scoreThreshold)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]store.ScoredChunk, len(results))
	for i, r := range results {
		scored[i] = store.ScoredChunk{
			TextChunk: store.TextChunk{
				ID:            r.ChunkID,
				ChapterNumber: r.ChapterNumber,
				ChapterTitle:  r.ChapterTitle,
				SectionID:     r.SectionID,
				SectionTitle:  r.SectionTitle,
				Content:       r.Content,
				Position:      r.Position,
				TokenCount:    r.TokenCount,
			},
			Score: r.Similarity,
		}
	}
	return scored, nil
}

func (s *Index) Info(ctx context.Context) (vectorindex.CollectionInfo, error) {
	info := vectorindex.CollectionInfo{Name: model.TextChunk{}.TableName(), Dimension: s.dimension}

	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(&model.TextChunk{}) {
		info.Status = "missing"
		return info, nil
	}

	var count int64
	if err := db.Model(&model.TextChunk{}).Count(&count).Error; err != nil {
		return info, err
	}
	info.PointsCount = count
	info.Status = "green"
	return info, nil
}
