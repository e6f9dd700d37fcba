package model

import (
	"time"

	"github.com/google/uuid"
)

// Conversation IDs are generated by clients, so there is no database default.
type Conversation struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index"`
	Messages  []Message `gorm:"foreignKey:ConversationId;constraint:OnDelete:CASCADE"`
}

func (Conversation) TableName() string {
	return "conversations"
}
