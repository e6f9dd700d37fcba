package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"textbook-rag-be/internal/dto"
	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/internal/repository/cache"
	"textbook-rag-be/internal/repository/unitofwork"
	"textbook-rag-be/pkg/llm"
	"textbook-rag-be/pkg/store"

	"github.com/google/uuid"
)

// historyCacheWindow is how many recent messages are kept per cached conversation.
const historyCacheWindow = 50

type SaveMessageCommand struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Role           string
	Content        string
	Sources        []store.SourceReference
}

type IConversationService interface {
	// SaveMessage creates the conversation when needed, appends the message and
	// marks the conversation active, all in one transaction.
	SaveMessage(ctx context.Context, cmd SaveMessageCommand) (*entity.Message, error)
	// RecentMessages returns up to limit stored messages, oldest first, as model input.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error)
	GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) (*dto.ConversationMessagesResponse, error)
	CleanupInactive(ctx context.Context, olderThan time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      cache.HistoryCache
	logger     logger.ILogger

	// versions counts saves per conversation. A cache fill is dropped when a
	// save landed while its database read was in flight.
	mu       sync.Mutex
	versions map[uuid.UUID]uint64
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	historyCache cache.HistoryCache,
	log logger.ILogger,
) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		cache:      historyCache,
		logger:     log,
		versions:   make(map[uuid.UUID]uint64),
	}
}

func (s *conversationService) SaveMessage(ctx context.Context, cmd SaveMessageCommand) (*entity.Message, error) {
	message := &entity.Message{
		Id:             cmd.MessageID,
		ConversationId: cmd.ConversationID,
		Role:           cmd.Role,
		Content:        cmd.Content,
		Sources:        cmd.Sources,
		CreatedAt:      time.Now(),
	}

	err := unitofwork.Transact(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		if err := uow.ConversationRepository().EnsureExists(ctx, cmd.ConversationID); err != nil {
			return &PersistenceError{Op: "create conversation", Err: err}
		}
		if err := uow.MessageRepository().Save(ctx, message); err != nil {
			return &PersistenceError{Op: "insert message", Err: err}
		}
		if err := uow.ConversationRepository().Touch(ctx, cmd.ConversationID, message.CreatedAt); err != nil {
			return &PersistenceError{Op: "touch conversation", Err: err}
		}
		return nil
	})
	if err != nil {
		var persistErr *PersistenceError
		if errors.As(err, &persistErr) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "transaction", Err: err}
	}

	s.mu.Lock()
	s.versions[cmd.ConversationID]++
	s.mu.Unlock()
	s.cache.Invalidate(ctx, cmd.ConversationID)

	s.logger.Debug("PERSIST", "Message saved", map[string]interface{}{
		"conversation_id": cmd.ConversationID.String(),
		"message_id":      cmd.MessageID.String(),
		"role":            cmd.Role,
		"sources":         len(cmd.Sources),
	})
	return message, nil
}

func (s *conversationService) RecentMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error) {
	id, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, &ValidationError{Field: "conversationId", Message: "Invalid conversation id"}
	}

	messages, err := s.recent(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, len(messages))
	for i, m := range messages {
		history[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return history, nil
}

func (s *conversationService) GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) (*dto.ConversationMessagesResponse, error) {
	messages, err := s.recent(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	res := &dto.ConversationMessagesResponse{
		ConversationId: conversationID,
		Messages:       make([]*dto.MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		res.Messages = append(res.Messages, &dto.MessageResponse{
			Id:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			Sources:   m.Sources,
			Timestamp: m.CreatedAt,
		})
	}
	return res, nil
}

// recent serves windows up to historyCacheWindow from the cache and reads
// larger ones straight from the database.
func (s *conversationService) recent(ctx context.Context, conversationID uuid.UUID, limit int) ([]*entity.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	if limit <= historyCacheWindow {
		if cached, found := s.cache.Get(ctx, conversationID); found {
			return tail(cached, limit), nil
		}
	}

	fetch := max(limit, historyCacheWindow)
	version := s.version(conversationID)
	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.MessageRepository().FindRecent(ctx, conversationID, fetch)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}

	if fetch == historyCacheWindow {
		s.fill(ctx, conversationID, version, messages)
	}
	return tail(messages, limit), nil
}

func (s *conversationService) version(conversationID uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[conversationID]
}

// fill caches messages unless a save for the conversation committed after
// version was read. The check and Set share the lock that SaveMessage takes
// before invalidating, so an Invalidate always follows any Set it races with.
func (s *conversationService) fill(ctx context.Context, conversationID uuid.UUID, version uint64, messages []*entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[conversationID] != version {
		s.logger.Debug("PERSIST", "Skipped stale history cache fill", map[string]interface{}{
			"conversation_id": conversationID.String(),
		})
		return
	}
	s.cache.Set(ctx, conversationID, messages)
}

func (s *conversationService) CleanupInactive(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	deleted, err := uow.ConversationRepository().DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		return 0, &PersistenceError{Op: "cleanup", Err: err}
	}

	s.logger.Info("PERSIST", "Inactive conversations removed", map[string]interface{}{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
	return deleted, nil
}

func (s *conversationService) Ping(ctx context.Context) error {
	return s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().Ping(ctx)
}

func tail(messages []*entity.Message, n int) []*entity.Message {
	if len(messages) > n {
		return messages[len(messages)-n:]
	}
	return messages
}
