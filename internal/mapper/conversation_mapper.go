package mapper

import (
	"encoding/json"

	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/model"
	"textbook-rag-be/pkg/store"

	"gorm.io/datatypes"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}
	return &entity.Conversation{
		Id:        c.Id,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (m *ConversationMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}
	return &model.Conversation{
		Id:        c.Id,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// MessageToEntity tolerates malformed sources JSON by dropping the sources.
func (m *ConversationMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	var sources []store.SourceReference
	if len(msg.Sources) > 0 {
		if err := json.Unmarshal(msg.Sources, &sources); err != nil {
			sources = nil
		}
	}

	return &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		Sources:        sources,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ConversationMapper) MessageToModel(msg *entity.Message) (*model.Message, error) {
	if msg == nil {
		return nil, nil
	}

	var sources datatypes.JSON
	if len(msg.Sources) > 0 {
		raw, err := json.Marshal(msg.Sources)
		if err != nil {
			return nil, err
		}
		sources = datatypes.JSON(raw)
	}

	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		Sources:        sources,
		CreatedAt:      msg.CreatedAt,
	}, nil
}

func (m *ConversationMapper) MessagesToEntities(models []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(models))
	for i, msg := range models {
		entities[i] = m.MessageToEntity(msg)
	}
	return entities
}
