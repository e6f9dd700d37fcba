package implementation

import (
	"context"
	"errors"
	"time"

	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/mapper"
	"textbook-rag-be/internal/model"
	"textbook-rag-be/internal/repository/contract"
	"textbook-rag-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewConversationRepository(db *gorm.DB) contract.ConversationRepository {
	return &ConversationRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *ConversationRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ConversationRepositoryImpl) EnsureExists(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Conversation{Id: id}).Error
}

func (r *ConversationRepositoryImpl) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
}

func (r *ConversationRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	var m model.Conversation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ConversationToEntity(&m), nil
}

func (r *ConversationRepositoryImpl) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.applySpecifications(r.db.WithContext(ctx), specification.UpdatedBefore{Cutoff: cutoff}).
		Delete(&model.Conversation{})
	return result.RowsAffected, result.Error
}

func (r *ConversationRepositoryImpl) Ping(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("SELECT 1").Error
}
