package handlers

import (
	"errors"

	"hisabkitab/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ImportHandler struct {
	importService *service.ImportService
	logger        *zap.Logger
}

func NewImportHandler(importService *service.ImportService, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		logger:        logger,
	}
}

// Upload godoc
// @Summary Upload a bank statement
// @Description Store a PDF statement and queue it for extraction
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Statement PDF"
// @Security Bearer
// @Success 201 {object} dto.UploadResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/imports/upload [post]
func (h *ImportHandler) Upload(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "File is required")
	}

	src, err := file.Open()
	if err != nil {
		return badRequest(c, "Failed to open file")
	}
	defer src.Close()

	resp, err := h.importService.Upload(c.Context(), userID, src, file.Filename)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFile) {
			return badRequest(c, "Only PDF files are accepted")
		}
		return serviceError(c, h.logger, err, "upload statement")
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ListJobs godoc
// @Summary List import jobs
// @Description Jobs of the current user, newest first
// @Tags imports
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.JobListResponse
// @Failure 401 {object} map[string]string
// @Router /api/imports/jobs [get]
func (h *ImportHandler) ListJobs(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	resp, err := h.importService.ListJobs(c.Context(), userID)
	if err != nil {
		return serviceError(c, h.logger, err, "list jobs")
	}

	return c.JSON(resp)
}

// GetJob godoc
// @Summary Get import job status
// @Description A completed job also reports how many transactions it produced
// @Tags imports
// @Produce json
// @Param id path string true "Job ID"
// @Security Bearer
// @Success 200 {object} dto.JobResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/imports/jobs/{id} [get]
func (h *ImportHandler) GetJob(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid job ID")
	}

	resp, err := h.importService.GetJob(c.Context(), userID, jobID)
	if err != nil {
		return serviceError(c, h.logger, err, "get job")
	}

	return c.JSON(resp)
}
