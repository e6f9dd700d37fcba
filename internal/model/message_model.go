package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Message struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID      `gorm:"type:uuid;not null;index:idx_messages_conversation_id"`
	Role           string         `gorm:"type:varchar(20);not null;check:role IN ('user', 'assistant')"`
	Content        string         `gorm:"type:text;not null"`
	Sources        datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index:idx_messages_created_at"`
}

func (Message) TableName() string {
	return "messages"
}
