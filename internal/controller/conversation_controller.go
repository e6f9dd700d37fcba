package controller

import (
	"textbook-rag-be/internal/dto"
	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/pkg/serverutils"
	"textbook-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxMessagesLimit = 100

type IConversationController interface {
	RegisterRoutes(r fiber.Router)
	GetMessages(ctx *fiber.Ctx) error
	SaveMessage(ctx *fiber.Ctx) error
}

type conversationController struct {
	service service.IConversationService
}

func NewConversationController(service service.IConversationService) IConversationController {
	return &conversationController{service: service}
}

func (c *conversationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/conversations")
	h.Get("/:id/messages", c.GetMessages)
	h.Post("/:id/messages", c.SaveMessage)
}

func (c *conversationController) GetMessages(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}

	limit := ctx.QueryInt("limit", 10)
	if limit <= 0 || limit > maxMessagesLimit {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 100")
	}

	res, err := c.service.GetMessages(ctx.UserContext(), id, limit)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

func (c *conversationController) SaveMessage(ctx *fiber.Ctx) error {
	conversationID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}

	var req dto.SaveMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	message, err := c.service.SaveMessage(ctx.UserContext(), service.SaveMessageCommand{
		ConversationID: conversationID,
		MessageID:      uuid.MustParse(req.Id),
		Role:           req.Role,
		Content:        req.Content,
		Sources:        req.Sources,
	})
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success save message", toMessageResponse(message)))
}

func toMessageResponse(m *entity.Message) *dto.MessageResponse {
	return &dto.MessageResponse{
		Id:        m.Id,
		Role:      m.Role,
		Content:   m.Content,
		Sources:   m.Sources,
		Timestamp: m.CreatedAt,
	}
}
