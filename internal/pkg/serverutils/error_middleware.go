package serverutils

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"commonbook-be/internal/render"
	"commonbook-be/internal/service"
)

// ErrorHandlerMiddleware converts downstream errors into the uniform
// response envelope with an appropriate status code.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := fiber.StatusInternalServerError
		message := err.Error()

		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			message = fiberErr.Message
		case errors.Is(err, service.ErrSessionNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, render.ErrArtifactGone):
			status = fiber.StatusGone
		case strings.Contains(message, "unsupported file type"),
			strings.Contains(message, "invalid youtube url"),
			strings.Contains(message, "unsupported media host"),
			strings.Contains(message, "no files uploaded"):
			status = fiber.StatusBadRequest
		case strings.Contains(message, "already in progress"),
			strings.Contains(message, "not completed"):
			status = fiber.StatusConflict
		}

		return ctx.Status(status).JSON(ErrorResponse(message))
	}
}
