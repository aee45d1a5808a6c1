package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"commonbook-be/internal/pkg/serverutils"
	"commonbook-be/internal/service"
)

type IStatusController interface {
	RegisterRoutes(r fiber.Router)
	GetProgress(ctx *fiber.Ctx) error
}

type statusController struct {
	service service.IStatusService
}

func NewStatusController(service service.IStatusService) IStatusController {
	return &statusController{service: service}
}

func (c *statusController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/status/v1")
	h.Get("/:id", c.GetProgress)
}

func (c *statusController) GetProgress(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.service.GetProgress(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get progress", res))
}
