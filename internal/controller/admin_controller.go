package controller

import (
	"textbook-rag-be/internal/dto"
	"textbook-rag-be/internal/pkg/serverutils"
	"textbook-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	Reindex(ctx *fiber.Ctx) error
	IndexInfo(ctx *fiber.Ctx) error
	Cleanup(ctx *fiber.Ctx) error
}

type adminController struct {
	service   service.IAdminService
	jwtSecret string
}

func NewAdminController(service service.IAdminService, jwtSecret string) IAdminController {
	return &adminController{service: service, jwtSecret: jwtSecret}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post("/reindex", c.Reindex)
	h.Get("/index", c.IndexInfo)
	h.Post("/cleanup", c.Cleanup)
}

func (c *adminController) Reindex(ctx *fiber.Ctx) error {
	var req dto.ReindexRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	res, err := c.service.Reindex(ctx.UserContext(), req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Reindex queued", res))
}

func (c *adminController) IndexInfo(ctx *fiber.Ctx) error {
	res, err := c.service.IndexInfo(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get index info", res))
}

func (c *adminController) Cleanup(ctx *fiber.Ctx) error {
	var req dto.CleanupRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Cleanup(ctx.UserContext(), req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success cleanup conversations", res))
}
