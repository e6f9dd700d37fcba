package serverutils

import (
	"errors"

	"textbook-rag-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type httpStatuser interface {
	HTTPStatus() int
}

// ErrorHandler renders every returned error as the JSON envelope.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fiberErr *fiber.Error
		var statusErr httpStatuser
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			message = fiberErr.Message
		case errors.As(err, &statusErr) && statusErr.HTTPStatus() < 500:
			code = statusErr.HTTPStatus()
			message = err.Error()
		default:
			log.Error("HTTP", "Unhandled error", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
		}

		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

// ErrorHandlerMiddleware catches errors from downstream handlers so they
// leave with the envelope even when mounted under a sub-app.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	handle := ErrorHandler(log)
	return func(ctx *fiber.Ctx) error {
		if err := ctx.Next(); err != nil {
			return handle(ctx, err)
		}
		return nil
	}
}
