package implementation

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/mapper"
	"textbook-rag-be/internal/model"
	"textbook-rag-be/internal/repository/contract"
	"textbook-rag-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *MessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MessageRepositoryImpl) Save(ctx context.Context, message *entity.Message) error {
	m, err := r.mapper.MessageToModel(message)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("message %s: %w", message.Id, contract.ErrDuplicateMessage)
		}
		return err
	}
	*message = *r.mapper.MessageToEntity(m)
	return nil
}

func (r *MessageRepositoryImpl) FindRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]*entity.Message, error) {
	messages, err := r.FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationID},
		specification.NewestFirst{},
		specification.Limit{N: limit},
	)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var models []*model.Message
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.MessagesToEntities(models), nil
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Message{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
