package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByRole struct {
	Role string
}

func (s ByRole) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("role = ?", s.Role)
}

// UpdatedBefore matches conversations with no activity since Cutoff.
type UpdatedBefore struct {
	Cutoff time.Time
}

func (s UpdatedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("updated_at < ?", s.Cutoff)
}
