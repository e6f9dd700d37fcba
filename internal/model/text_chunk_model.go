package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// TextChunk is one indexed textbook passage. PointID is the chunk's position in
// the ingestion run, the same identity the Qdrant backend uses.
type TextChunk struct {
	PointID       int             `gorm:"primaryKey;autoIncrement:false"`
	ChunkID       string          `gorm:"type:text;not null;index"`
	ChapterNumber int             `gorm:"not null;index"`
	ChapterTitle  string          `gorm:"type:text"`
	SectionID     string          `gorm:"type:varchar(32)"`
	SectionTitle  string          `gorm:"type:text"`
	Content       string          `gorm:"type:text;not null"`
	Position      int             `gorm:"default:0"`
	TokenCount    int             `gorm:"default:0"`
	Embedding     pgvector.Vector `gorm:"type:vector"`
	CreatedAt     time.Time       `gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime"`
}

func (TextChunk) TableName() string {
	return "text_chunks"
}
