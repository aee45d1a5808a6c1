package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"commonbook-be/internal/dto"
	"commonbook-be/internal/pkg/serverutils"
	"commonbook-be/internal/service"
)

type ISynthesisController interface {
	RegisterRoutes(r fiber.Router)
	Trigger(ctx *fiber.Ctx) error
}

type synthesisController struct {
	service service.ISynthesisService
}

func NewSynthesisController(service service.ISynthesisService) ISynthesisController {
	return &synthesisController{service: service}
}

func (c *synthesisController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/synthesis/v1")
	h.Post("/:id/trigger", c.Trigger)
}

func (c *synthesisController) Trigger(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	var req dto.TriggerSynthesisRequest
	if err := ctx.BodyParser(&req); err != nil && len(ctx.Body()) > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := c.service.Trigger(ctx.Context(), id, req.Mode); err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse[any]("Synthesis queued", nil))
}
