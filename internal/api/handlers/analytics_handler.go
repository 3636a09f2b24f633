package handlers

import (
	"hisabkitab/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	logger           *zap.Logger
}

func NewAnalyticsHandler(analyticsService *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// Monthly godoc
// @Summary Monthly totals
// @Tags analytics
// @Produce json
// @Param months query int false "Number of months, default 12, max 60"
// @Security Bearer
// @Success 200 {array} models.MonthlySummary
// @Router /api/analytics/monthly [get]
func (h *AnalyticsHandler) Monthly(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	resp, err := h.analyticsService.Monthly(c.Context(), userID, c.QueryInt("months", 12))
	if err != nil {
		return serviceError(c, h.logger, err, "load monthly summary")
	}

	return c.JSON(resp)
}

// Categories godoc
// @Summary Totals per category
// @Tags analytics
// @Produce json
// @Param txn_type query string false "debit (default) or credit"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Security Bearer
// @Success 200 {array} models.CategoryTotal
// @Failure 400 {object} map[string]string
// @Router /api/analytics/categories [get]
func (h *AnalyticsHandler) Categories(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	resp, err := h.analyticsService.Categories(c.Context(), userID, c.Query("txn_type"), c.Query("date_from"), c.Query("date_to"))
	if err != nil {
		return serviceError(c, h.logger, err, "load category totals")
	}

	return c.JSON(resp)
}

// Merchants godoc
// @Summary Top merchants by spending
// @Tags analytics
// @Produce json
// @Param limit query int false "Default 20, max 100"
// @Security Bearer
// @Success 200 {array} models.MerchantTotal
// @Router /api/analytics/merchants [get]
func (h *AnalyticsHandler) Merchants(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	resp, err := h.analyticsService.Merchants(c.Context(), userID, c.QueryInt("limit", 20))
	if err != nil {
		return serviceError(c, h.logger, err, "load merchant totals")
	}

	return c.JSON(resp)
}

// Cashflow godoc
// @Summary Income against expenses
// @Tags analytics
// @Produce json
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Security Bearer
// @Success 200 {object} models.Cashflow
// @Failure 400 {object} map[string]string
// @Router /api/analytics/cashflow [get]
func (h *AnalyticsHandler) Cashflow(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	resp, err := h.analyticsService.Cashflow(c.Context(), userID, c.Query("date_from"), c.Query("date_to"))
	if err != nil {
		return serviceError(c, h.logger, err, "load cashflow")
	}

	return c.JSON(resp)
}
