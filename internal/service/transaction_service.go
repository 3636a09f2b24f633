package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hisabkitab/internal/dto"
	"hisabkitab/internal/models"
	"hisabkitab/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100
	maxPage        = 1_000_000
	dateLayout     = "2006-01-02"
)

type TransactionService struct {
	txRepo       *repository.TransactionRepository
	categoryRepo *repository.CategoryRepository
	logger       *zap.Logger
}

func NewTransactionService(txRepo *repository.TransactionRepository, categoryRepo *repository.CategoryRepository, logger *zap.Logger) *TransactionService {
	return &TransactionService{
		txRepo:       txRepo,
		categoryRepo: categoryRepo,
		logger:       logger,
	}
}

// filterParams is the shared shape of listing, export and bulk-delete filters.
type filterParams struct {
	Merchant   string
	CategoryID string
	TxnType    string
	DateFrom   string
	DateTo     string
	AmountMin  string
	AmountMax  string
	Search     string
}

func queryParams(q *dto.TransactionQuery) filterParams {
	return filterParams{
		Merchant:   q.Merchant,
		CategoryID: q.CategoryID,
		TxnType:    q.TxnType,
		DateFrom:   q.DateFrom,
		DateTo:     q.DateTo,
		AmountMin:  q.AmountMin,
		AmountMax:  q.AmountMax,
		Search:     q.Search,
	}
}

func parseFilter(p filterParams) (models.TransactionFilter, error) {
	f := models.TransactionFilter{
		Merchant: strings.TrimSpace(p.Merchant),
		Search:   strings.TrimSpace(p.Search),
	}

	if p.CategoryID != "" {
		id, err := uuid.Parse(p.CategoryID)
		if err != nil {
			return f, fmt.Errorf("%w: invalid category_id", ErrValidation)
		}
		f.CategoryID = &id
	}

	switch models.TxnType(strings.ToLower(p.TxnType)) {
	case "":
	case models.TxnDebit:
		f.TxnType = models.TxnDebit
	case models.TxnCredit:
		f.TxnType = models.TxnCredit
	default:
		return f, fmt.Errorf("%w: txn_type must be debit or credit", ErrValidation)
	}

	var err error
	if f.DateFrom, err = parseDate("date_from", p.DateFrom); err != nil {
		return f, err
	}
	if f.DateTo, err = parseDate("date_to", p.DateTo); err != nil {
		return f, err
	}
	if f.AmountMin, err = parseAmount("amount_min", p.AmountMin); err != nil {
		return f, err
	}
	if f.AmountMax, err = parseAmount("amount_max", p.AmountMax); err != nil {
		return f, err
	}
	return f, nil
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrValidation, field)
	}
	return &t, nil
}

func parseAmount(field, value string) (*decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", ErrValidation, field)
	}
	return &d, nil
}

// pagination normalizes page and per_page and returns limit and offset.
func pagination(page, perPage int) (int, int, int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, perPage, (page - 1) * perPage
}

func parseSort(sortBy, sortDir string) (repository.Sort, error) {
	sort := repository.Sort{Column: "date", Desc: true}

	switch strings.ToLower(sortBy) {
	case "", "date":
	case "amount", "merchant":
		sort.Column = strings.ToLower(sortBy)
	default:
		return sort, fmt.Errorf("%w: sort_by must be date, amount or merchant", ErrValidation)
	}

	switch strings.ToLower(sortDir) {
	case "", "desc":
	case "asc":
		sort.Desc = false
	default:
		return sort, fmt.Errorf("%w: sort_dir must be asc or desc", ErrValidation)
	}
	return sort, nil
}

func (s *TransactionService) List(ctx context.Context, userID uuid.UUID, q *dto.TransactionQuery) (*dto.TransactionListResponse, error) {
	filter, err := parseFilter(queryParams(q))
	if err != nil {
		return nil, err
	}
	sort, err := parseSort(q.SortBy, q.SortDir)
	if err != nil {
		return nil, err
	}
	page, perPage, limit, offset := pagination(q.Page, q.PerPage)

	txns, total, err := s.txRepo.List(ctx, userID, filter, sort, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	resp := &dto.TransactionListResponse{
		Transactions: make([]dto.TransactionResponse, 0, len(txns)),
		Page:         page,
		PerPage:      perPage,
		Total:        total,
		TotalPages:   (total + perPage - 1) / perPage,
	}
	for _, t := range txns {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(t))
	}
	return resp, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id uuid.UUID) (*dto.TransactionResponse, error) {
	t, err := s.txRepo.GetByID(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	resp := toTransactionResponse(t)
	return &resp, nil
}

func (s *TransactionService) Update(ctx context.Context, userID, id uuid.UUID, req *dto.UpdateTransactionRequest) (*dto.TransactionResponse, error) {
	upd := models.TransactionUpdate{
		Merchant:    trimmedPtr(req.Merchant),
		Notes:       req.Notes,
		Description: trimmedPtr(req.Description),
	}

	if req.CategoryID != nil {
		categoryID, err := uuid.Parse(*req.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid category_id", ErrValidation)
		}
		visible, err := s.categoryRepo.VisibleTo(ctx, userID, categoryID)
		if err != nil {
			return nil, fmt.Errorf("failed to check category: %w", err)
		}
		if !visible {
			return nil, fmt.Errorf("%w: unknown category", ErrValidation)
		}
		upd.CategoryID = &categoryID
	}

	t, err := s.txRepo.Update(ctx, userID, id, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	resp := toTransactionResponse(t)
	return &resp, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := s.txRepo.Delete(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// BulkDelete removes the listed ids, or every match of the filters when All is set.
func (s *TransactionService) BulkDelete(ctx context.Context, userID uuid.UUID, req *dto.BulkDeleteRequest) (*dto.BulkDeleteResponse, error) {
	if req.All {
		filter, err := parseFilter(filterParams{
			Merchant:   req.Merchant,
			CategoryID: req.CategoryID,
			TxnType:    req.TxnType,
			DateFrom:   req.DateFrom,
			DateTo:     req.DateTo,
			AmountMin:  req.AmountMin,
			AmountMax:  req.AmountMax,
			Search:     req.Search,
		})
		if err != nil {
			return nil, err
		}
		n, err := s.txRepo.DeleteMatching(ctx, userID, filter)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Transactions deleted by filter", zap.String("user_id", userID.String()), zap.Int64("deleted", n))
		return &dto.BulkDeleteResponse{Deleted: n}, nil
	}

	if len(req.IDs) == 0 {
		return nil, fmt.Errorf("%w: ids or all is required", ErrValidation)
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", ErrValidation, raw)
		}
		ids = append(ids, id)
	}

	n, err := s.txRepo.DeleteByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	return &dto.BulkDeleteResponse{Deleted: n}, nil
}

func (s *TransactionService) Categories(ctx context.Context, userID uuid.UUID) ([]dto.CategoryResponse, error) {
	categories, err := s.categoryRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	resp := make([]dto.CategoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, dto.CategoryResponse{
			ID:       c.ID.String(),
			Name:     c.Name,
			Icon:     c.Icon,
			Color:    c.Color,
			IsGlobal: c.UserID == nil,
		})
	}
	return resp, nil
}

func toTransactionResponse(t *models.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:           t.ID.String(),
		PageNumber:   t.PageNumber,
		Date:         t.Date.Format(dateLayout),
		Description:  t.Description,
		Merchant:     t.Merchant,
		CategoryName: t.Category,
		Amount:       t.Amount.StringFixed(2),
		TxnType:      string(t.TxnType),
		Currency:     t.Currency,
		Notes:        t.Notes,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
	if t.ImportID != nil {
		id := t.ImportID.String()
		resp.ImportID = &id
	}
	if t.CategoryID != nil {
		id := t.CategoryID.String()
		resp.CategoryID = &id
	}
	if t.Balance.Valid {
		b := t.Balance.Decimal.StringFixed(2)
		resp.Balance = &b
	}
	return resp
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
