package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"commonbook-be/internal/dto"
	"commonbook-be/internal/pkg/serverutils"
	"commonbook-be/internal/service"
)

type IUploadController interface {
	RegisterRoutes(r fiber.Router)
	UploadFile(ctx *fiber.Ctx) error
	IngestYoutube(ctx *fiber.Ctx) error
}

type uploadController struct {
	service service.IUploadService
}

func NewUploadController(service service.IUploadService) IUploadController {
	return &uploadController{service: service}
}

func (c *uploadController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/upload/v1")
	h.Post("/:id/file", c.UploadFile)
	h.Post("/:id/youtube", c.IngestYoutube)
}

func (c *uploadController) UploadFile(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file field")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable upload")
	}
	defer file.Close()

	res, err := c.service.UploadFile(ctx.Context(), id, fileHeader.Filename, file)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("File uploaded", res))
}

func (c *uploadController) IngestYoutube(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	var req dto.YoutubeIngestRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	res, err := c.service.IngestYoutube(ctx.Context(), id, req.URL)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Youtube source registered", res))
}
