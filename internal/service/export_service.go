package service

import (
	"context"
	"fmt"
	"time"

	"hisabkitab/internal/dto"
	"hisabkitab/internal/models"
	"hisabkitab/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const exportSheet = "Transactions"

var exportHeaders = []string{
	"Date", "Description", "Merchant", "Category", "Type", "Amount", "Balance", "Currency", "Notes",
}

type ExportService struct {
	txRepo *repository.TransactionRepository
	logger *zap.Logger
}

func NewExportService(txRepo *repository.TransactionRepository, logger *zap.Logger) *ExportService {
	return &ExportService{txRepo: txRepo, logger: logger}
}

// ExportXLSX returns a workbook with every transaction matching the query filters.
func (s *ExportService) ExportXLSX(ctx context.Context, userID uuid.UUID, q *dto.TransactionQuery) ([]byte, error) {
	start := time.Now()

	filter, err := parseFilter(queryParams(q))
	if err != nil {
		return nil, err
	}

	txns, err := s.txRepo.ListAll(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	data, err := buildWorkbook(txns)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transactions exported",
		zap.String("user_id", userID.String()),
		zap.Int("rows", len(txns)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return data, nil
}

func buildWorkbook(txns []*models.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(exportSheet, 1, 1, style)
	}

	for i, t := range txns {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}

		write(1, t.Date.Format(dateLayout))
		write(2, deref(t.Description))
		write(3, deref(t.Merchant))
		write(4, deref(t.Category))
		write(5, string(t.TxnType))
		write(6, t.Amount.InexactFloat64())
		if t.Balance.Valid {
			write(7, t.Balance.Decimal.InexactFloat64())
		}
		write(8, t.Currency)
		write(9, deref(t.Notes))
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 12)
	_ = f.SetColWidth(exportSheet, "B", "B", 48)
	_ = f.SetColWidth(exportSheet, "C", "D", 24)
	_ = f.SetColWidth(exportSheet, "E", "H", 12)
	_ = f.SetColWidth(exportSheet, "I", "I", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
