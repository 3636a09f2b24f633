package service

import (
	"context"
	"fmt"
	"time"

	"hisabkitab/internal/models"
	"hisabkitab/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMonths        = 12
	maxMonths            = 60
	defaultMerchantLimit = 20
	maxMerchantLimit     = 100
)

type AnalyticsService struct {
	txRepo *repository.TransactionRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewAnalyticsService(txRepo *repository.TransactionRepository, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		txRepo: txRepo,
		now:    time.Now,
		logger: logger,
	}
}

// monthsSince returns the first day of the month that starts a window of
// the given number of calendar months ending with the current one.
func monthsSince(now time.Time, months int) time.Time {
	if months <= 0 {
		months = defaultMonths
	}
	if months > maxMonths {
		months = maxMonths
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -(months - 1), 0)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultMerchantLimit
	}
	if limit > maxMerchantLimit {
		return maxMerchantLimit
	}
	return limit
}

func (s *AnalyticsService) Monthly(ctx context.Context, userID uuid.UUID, months int) ([]models.MonthlySummary, error) {
	summary, err := s.txRepo.Monthly(ctx, userID, monthsSince(s.now(), months))
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly summary: %w", err)
	}
	return summary, nil
}

// Categories totals spending (or income) per category; txnType defaults to debit.
func (s *AnalyticsService) Categories(ctx context.Context, userID uuid.UUID, txnType, dateFrom, dateTo string) ([]models.CategoryTotal, error) {
	if txnType == "" {
		txnType = string(models.TxnDebit)
	}
	filter, err := parseFilter(filterParams{TxnType: txnType, DateFrom: dateFrom, DateTo: dateTo})
	if err != nil {
		return nil, err
	}

	totals, err := s.txRepo.CategoryTotals(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load category totals: %w", err)
	}
	return totals, nil
}

func (s *AnalyticsService) Merchants(ctx context.Context, userID uuid.UUID, limit int) ([]models.MerchantTotal, error) {
	totals, err := s.txRepo.MerchantTotals(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant totals: %w", err)
	}
	return totals, nil
}

func (s *AnalyticsService) Cashflow(ctx context.Context, userID uuid.UUID, dateFrom, dateTo string) (*models.Cashflow, error) {
	filter, err := parseFilter(filterParams{DateFrom: dateFrom, DateTo: dateTo})
	if err != nil {
		return nil, err
	}

	flow, err := s.txRepo.Cashflow(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load cashflow: %w", err)
	}
	if filter.DateFrom != nil {
		from := filter.DateFrom.Format(dateLayout)
		flow.PeriodFrom = &from
	}
	if filter.DateTo != nil {
		to := filter.DateTo.Format(dateLayout)
		flow.PeriodTo = &to
	}
	return flow, nil
}
