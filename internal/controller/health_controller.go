package controller

import (
	"textbook-rag-be/internal/pkg/serverutils"
	"textbook-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	service service.IHealthService
}

func NewHealthController(service service.IHealthService) IHealthController {
	return &healthController{service: service}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	res := c.service.Check(ctx.UserContext())

	status := fiber.StatusOK
	if res.Status == service.HealthStatusDown {
		status = fiber.StatusServiceUnavailable
	}
	return ctx.Status(status).JSON(serverutils.SuccessResponse("Health check", res))
}
