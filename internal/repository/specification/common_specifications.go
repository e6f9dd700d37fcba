package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByID struct {
	ID uuid.UUID
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// NewestFirst orders by creation time, breaking ties on id so that equal
// timestamps still page deterministically.
type NewestFirst struct{}

func (NewestFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

// Limit caps the result size. Non-positive values leave the query unbounded.
type Limit struct {
	N int
}

func (s Limit) Apply(db *gorm.DB) *gorm.DB {
	if s.N <= 0 {
		return db
	}
	return db.Limit(s.N)
}
