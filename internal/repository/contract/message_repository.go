package contract

import (
	"context"
	"errors"

	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/repository/specification"

	"github.com/google/uuid"
)

var ErrDuplicateMessage = errors.New("message already exists")

// MessageRepository is append-only. There is no update or per-message delete.
type MessageRepository interface {
	// Save inserts message. A reused ID fails with ErrDuplicateMessage.
	Save(ctx context.Context, message *entity.Message) error
	// FindRecent returns the newest limit messages in chronological order.
	FindRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]*entity.Message, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
