package server

import (
	"context"
	"time"

	"textbook-rag-be/internal/bootstrap"
	"textbook-rag-be/internal/config"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
	logger    logger.ILogger
}

func New(cfg *config.Config, container *bootstrap.Container, log logger.ILogger) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "textbook-rag-be",
		BodyLimit:    cfg.App.BodyLimit,
		ErrorHandler: serverutils.ErrorHandler(log),
	})

	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.App.CorsAllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware(log))

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
		logger:    log,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.logger.Info("HTTP", "Server is running", map[string]interface{}{"addr": "http://localhost:" + s.cfg.App.Port})
	return s.app.Listen(":" + s.cfg.App.Port)
}

// Shutdown stops accepting requests and waits for open streams until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return s.app.Shutdown()
	}
	return s.app.ShutdownWithTimeout(time.Until(deadline))
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")

	c.HealthController.RegisterRoutes(api)
	c.ChatController.RegisterRoutes(api)
	c.ConversationController.RegisterRoutes(api)
	c.AdminController.RegisterRoutes(api)
}
