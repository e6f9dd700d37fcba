package controller

import (
	"bufio"
	"context"

	"textbook-rag-be/internal/dto"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/internal/pkg/serverutils"
	"textbook-rag-be/internal/service"
	"textbook-rag-be/internal/websocket"
	"textbook-rag-be/pkg/rag/stream"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	MethodNotAllowed(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
	hub     *websocket.Hub
	logger  logger.ILogger
}

func NewChatController(service service.IChatService, hub *websocket.Hub, log logger.ILogger) IChatController {
	return &chatController{service: service, hub: hub, logger: log}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat")
	h.Get("/ws", websocket.Upgrade, fiberws.New(func(conn *fiberws.Conn) {
		websocket.ServeWs(c.hub, conn, c.service, c.logger)
	}))
	h.Post("", c.Chat)
	h.All("", c.MethodNotAllowed)
}

// Chat answers one question as a server-sent event stream.
func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if _, err := service.ValidateQuery(req.Query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	cmd := service.ChatCommandFromRequest(req)
	parent := ctx.UserContext()

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache, no-transform")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		reqCtx, cancel := context.WithCancel(context.WithoutCancel(parent))
		defer cancel()

		for ev := range c.service.Stream(reqCtx, cmd) {
			frame, err := stream.Frame(ev)
			if err != nil {
				c.logger.Error("HTTP", "Failed to encode event", map[string]interface{}{"error": err.Error()})
				continue
			}
			if _, err := w.Write(frame); err != nil {
				c.logger.Info("HTTP", "Client disconnected during stream", nil)
				cancel()
				return
			}
			// fasthttp reports a gone peer through Flush.
			if err := w.Flush(); err != nil {
				c.logger.Info("HTTP", "Client disconnected during stream", nil)
				cancel()
				return
			}
		}
	})

	return nil
}

func (c *chatController) MethodNotAllowed(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderAllow, fiber.MethodPost)
	return ctx.Status(fiber.StatusMethodNotAllowed).JSON(serverutils.ErrorResponse(fiber.StatusMethodNotAllowed, "Method not allowed"))
}
