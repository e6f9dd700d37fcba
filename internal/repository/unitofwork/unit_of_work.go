package unitofwork

import (
	"context"

	"textbook-rag-be/internal/repository/contract"
)

// UnitOfWork hands out conversation and message repositories that share one
// session. Between Begin and Commit or Rollback they share one transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	MessageRepository() contract.MessageRepository
}
