package handlers

import (
	"fmt"
	"time"

	"hisabkitab/internal/dto"
	"hisabkitab/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type TransactionHandler struct {
	txService     *service.TransactionService
	exportService *service.ExportService
	logger        *zap.Logger
}

func NewTransactionHandler(txService *service.TransactionService, exportService *service.ExportService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		txService:     txService,
		exportService: exportService,
		logger:        logger,
	}
}

// List godoc
// @Summary List transactions
// @Description Filtered, sorted and paginated transactions of the current user
// @Tags transactions
// @Produce json
// @Param merchant query string false "Merchant contains"
// @Param category_id query string false "Category ID"
// @Param txn_type query string false "debit or credit"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Param amount_min query string false "Minimum amount"
// @Param amount_max query string false "Maximum amount"
// @Param search query string false "Description or merchant contains"
// @Param sort_by query string false "date, amount or merchant"
// @Param sort_dir query string false "asc or desc"
// @Param page query int false "Page, from 1"
// @Param per_page query int false "Page size, max 100"
// @Security Bearer
// @Success 200 {object} dto.TransactionListResponse
// @Failure 400 {object} map[string]string
// @Router /api/transactions [get]
func (h *TransactionHandler) List(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var q dto.TransactionQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "Invalid query parameters")
	}

	resp, err := h.txService.List(c.Context(), userID, &q)
	if err != nil {
		return serviceError(c, h.logger, err, "list transactions")
	}

	return c.JSON(resp)
}

// Get godoc
// @Summary Get a transaction
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Security Bearer
// @Success 200 {object} dto.TransactionResponse
// @Failure 404 {object} map[string]string
// @Router /api/transactions/{id} [get]
func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid transaction ID")
	}

	resp, err := h.txService.Get(c.Context(), userID, id)
	if err != nil {
		return serviceError(c, h.logger, err, "get transaction")
	}

	return c.JSON(resp)
}

// Update godoc
// @Summary Edit a transaction
// @Description Change category, merchant, notes or description
// @Tags transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param request body dto.UpdateTransactionRequest true "Fields to change"
// @Security Bearer
// @Success 200 {object} dto.TransactionResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/transactions/{id} [patch]
func (h *TransactionHandler) Update(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid transaction ID")
	}

	var req dto.UpdateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.txService.Update(c.Context(), userID, id, &req)
	if err != nil {
		return serviceError(c, h.logger, err, "update transaction")
	}

	return c.JSON(resp)
}

// Delete godoc
// @Summary Delete a transaction
// @Tags transactions
// @Param id path string true "Transaction ID"
// @Security Bearer
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/transactions/{id} [delete]
func (h *TransactionHandler) Delete(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid transaction ID")
	}

	if err := h.txService.Delete(c.Context(), userID, id); err != nil {
		return serviceError(c, h.logger, err, "delete transaction")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// BulkDelete godoc
// @Summary Delete many transactions
// @Description Delete the listed ids, or with all=true every transaction matching the filters
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body dto.BulkDeleteRequest true "Ids or filters"
// @Security Bearer
// @Success 200 {object} dto.BulkDeleteResponse
// @Failure 400 {object} map[string]string
// @Router /api/transactions/bulk-delete [post]
func (h *TransactionHandler) BulkDelete(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.BulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.txService.BulkDelete(c.Context(), userID, &req)
	if err != nil {
		return serviceError(c, h.logger, err, "delete transactions")
	}

	return c.JSON(resp)
}

// Categories godoc
// @Summary List categories
// @Description Global categories plus the user's own
// @Tags transactions
// @Produce json
// @Security Bearer
// @Success 200 {array} dto.CategoryResponse
// @Router /api/transactions/categories [get]
func (h *TransactionHandler) Categories(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	resp, err := h.txService.Categories(c.Context(), userID)
	if err != nil {
		return serviceError(c, h.logger, err, "list categories")
	}

	return c.JSON(resp)
}

// Export godoc
// @Summary Export transactions
// @Description XLSX workbook of the transactions matching the listing filters
// @Tags transactions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param merchant query string false "Merchant contains"
// @Param category_id query string false "Category ID"
// @Param txn_type query string false "debit or credit"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Security Bearer
// @Success 200 {file} file
// @Failure 400 {object} map[string]string
// @Router /api/transactions/export [get]
func (h *TransactionHandler) Export(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var q dto.TransactionQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "Invalid query parameters")
	}

	data, err := h.exportService.ExportXLSX(c.Context(), userID, &q)
	if err != nil {
		return serviceError(c, h.logger, err, "export transactions")
	}

	filename := fmt.Sprintf("transactions_%s.xlsx", time.Now().Format("20060102"))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}
