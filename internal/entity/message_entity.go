package entity

import (
	"time"

	"textbook-rag-be/pkg/store"

	"github.com/google/uuid"
)

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message is append-only. Sources is only set on assistant answers.
type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Role           string
	Content        string
	Sources        []store.SourceReference
	CreatedAt      time.Time
}
