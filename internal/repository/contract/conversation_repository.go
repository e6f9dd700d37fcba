package contract

import (
	"context"
	"time"

	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	// EnsureExists creates the conversation if it is missing and leaves it untouched otherwise.
	EnsureExists(ctx context.Context, id uuid.UUID) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	// DeleteInactiveBefore removes conversations last active before cutoff, with their messages.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
}
