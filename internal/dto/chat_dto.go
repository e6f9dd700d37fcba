package dto

import (
	"time"

	"textbook-rag-be/pkg/store"

	"github.com/google/uuid"
)

type HistoryMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatRequest is the body of POST /api/chat and of each WebSocket frame.
// Query is checked by service.ValidateQuery so its messages match the API contract.
type ChatRequest struct {
	Query               string           `json:"query"`
	ConversationHistory []HistoryMessage `json:"conversationHistory" validate:"omitempty,max=100,dive"`
	SelectedText        string           `json:"selectedText" validate:"max=10000"`
	ConversationId      string           `json:"conversationId" validate:"omitempty,uuid"`
	MessageId           string           `json:"messageId" validate:"omitempty,uuid"`
}

type SaveMessageRequest struct {
	Id      string                  `json:"id" validate:"required,uuid"`
	Role    string                  `json:"role" validate:"required,oneof=user assistant"`
	Content string                  `json:"content" validate:"required"`
	Sources []store.SourceReference `json:"sources"`
}

type MessageResponse struct {
	Id        uuid.UUID               `json:"id"`
	Role      string                  `json:"role"`
	Content   string                  `json:"content"`
	Sources   []store.SourceReference `json:"sources,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

type ConversationMessagesResponse struct {
	ConversationId uuid.UUID          `json:"conversationId"`
	Messages       []*MessageResponse `json:"messages"`
}

type HealthComponent struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type HealthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]HealthComponent `json:"components"`
}
