package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"commonbook-be/internal/pkg/serverutils"
	"commonbook-be/internal/render"
	"commonbook-be/internal/service"
)

type IArtifactController interface {
	RegisterRoutes(r fiber.Router)
	GetCommonBook(ctx *fiber.Ctx) error
}

type artifactController struct {
	service service.IArtifactService
}

func NewArtifactController(service service.IArtifactService) IArtifactController {
	return &artifactController{service: service}
}

func (c *artifactController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/artifact/v1")
	h.Get("/:id/commonbook", c.GetCommonBook)
}

type commonBookPayload struct {
	Manuscript string          `json:"manuscript"`
	Metrics    *render.Metrics `json:"metrics,omitempty"`
}

func (c *artifactController) GetCommonBook(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	manuscript, metrics, err := c.service.GetCommonBook(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get commonbook", commonBookPayload{
		Manuscript: manuscript,
		Metrics:    metrics,
	}))
}
