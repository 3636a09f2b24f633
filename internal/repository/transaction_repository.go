package repository

import (
	"context"
	"fmt"
	"time"

	"hisabkitab/internal/models"
	"hisabkitab/internal/normalize"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const exportLimit = 50000

type TransactionRepository struct {
	db         *pgxpool.Pool
	categories *CategoryRepository
	logger     *zap.Logger
}

func NewTransactionRepository(db *pgxpool.Pool, categories *CategoryRepository, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:         db,
		categories: categories,
		logger:     logger,
	}
}

var insertColumns = []string{
	"id", "user_id", "import_id", "page_number", "date", "description", "merchant",
	"category_id", "amount", "txn_type", "balance", "currency",
}

// SaveImported stores one page worth of extracted transactions in a single
// database transaction and returns how many rows were written. Nothing is
// written if any insert fails.
func (r *TransactionRepository) SaveImported(ctx context.Context, userID, importID uuid.UUID, pageNumber int, txns []normalize.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	builder := squirrel.Insert("transactions").
		Columns(insertColumns...).
		PlaceholderFormat(squirrel.Dollar)

	for _, t := range txns {
		var categoryID *uuid.UUID
		if t.Category != nil {
			categoryID, err = r.categories.ResolveGlobal(ctx, tx, *t.Category)
			if err != nil {
				return 0, err
			}
		}
		builder = builder.Values(
			uuid.New(), userID, importID, pageNumber, t.Date, t.Description, t.Merchant,
			categoryID, t.Amount, t.TxnType, t.Balance, t.Currency,
		)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return 0, fmt.Errorf("failed to insert transactions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return len(txns), nil
}

var selectColumns = []string{
	"t.id", "t.user_id", "t.import_id", "t.page_number", "t.date", "t.description", "t.merchant",
	"t.category_id", "c.name", "t.amount", "t.txn_type", "t.balance", "t.currency", "t.notes", "t.created_at",
}

func selectTransactions() squirrel.SelectBuilder {
	return squirrel.Select(selectColumns...).
		From("transactions t").
		LeftJoin("categories c ON c.id = t.category_id").
		PlaceholderFormat(squirrel.Dollar)
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.ImportID, &t.PageNumber, &t.Date, &t.Description, &t.Merchant,
		&t.CategoryID, &t.Category, &t.Amount, &t.TxnType, &t.Balance, &t.Currency, &t.Notes, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func filterConditions(userID uuid.UUID, f models.TransactionFilter) squirrel.And {
	conds := squirrel.And{squirrel.Eq{"t.user_id": userID}}

	if f.Merchant != "" {
		conds = append(conds, squirrel.ILike{"t.merchant": "%" + f.Merchant + "%"})
	}
	if f.CategoryID != nil {
		conds = append(conds, squirrel.Eq{"t.category_id": *f.CategoryID})
	}
	if f.TxnType != "" {
		conds = append(conds, squirrel.Eq{"t.txn_type": f.TxnType})
	}
	if f.DateFrom != nil {
		conds = append(conds, squirrel.GtOrEq{"t.date": *f.DateFrom})
	}
	if f.DateTo != nil {
		conds = append(conds, squirrel.LtOrEq{"t.date": *f.DateTo})
	}
	if f.AmountMin != nil {
		conds = append(conds, squirrel.GtOrEq{"t.amount": *f.AmountMin})
	}
	if f.AmountMax != nil {
		conds = append(conds, squirrel.LtOrEq{"t.amount": *f.AmountMax})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		conds = append(conds, squirrel.Or{
			squirrel.ILike{"t.description": pattern},
			squirrel.ILike{"t.merchant": pattern},
		})
	}
	return conds
}

// Sort describes listing order; Column is already validated by the caller.
type Sort struct {
	Column string
	Desc   bool
}

var sortColumns = map[string]string{
	"date":     "t.date",
	"amount":   "t.amount",
	"merchant": "t.merchant",
}

// List returns one page of the user's transactions and the total match count.
func (r *TransactionRepository) List(ctx context.Context, userID uuid.UUID, f models.TransactionFilter, sort Sort, limit, offset int) ([]*models.Transaction, int, error) {
	conds := filterConditions(userID, f)

	countSQL, countArgs, err := squirrel.Select("COUNT(*)").
		From("transactions t").
		Where(conds).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	column, ok := sortColumns[sort.Column]
	if !ok {
		column = sortColumns["date"]
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}

	txns, err := r.query(ctx, selectTransactions().
		Where(conds).
		OrderBy(column+" "+dir, "t.created_at DESC", "t.id").
		Limit(uint64(limit)).
		Offset(uint64(offset)))
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListAll returns every matching transaction ordered by date, for export.
func (r *TransactionRepository) ListAll(ctx context.Context, userID uuid.UUID, f models.TransactionFilter) ([]*models.Transaction, error) {
	return r.query(ctx, selectTransactions().
		Where(filterConditions(userID, f)).
		OrderBy("t.date", "t.created_at").
		Limit(exportLimit))
}

func (r *TransactionRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Transaction, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txns := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *TransactionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error) {
	sql, args, err := selectTransactions().
		Where(squirrel.Eq{"t.id": id, "t.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	t, err := scanTransaction(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// Update applies the non-nil fields of upd. An empty update is a no-op lookup.
func (r *TransactionRepository) Update(ctx context.Context, userID, id uuid.UUID, upd models.TransactionUpdate) (*models.Transaction, error) {
	query := squirrel.Update("transactions").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	changed := false
	if upd.CategoryID != nil {
		query = query.Set("category_id", *upd.CategoryID)
		changed = true
	}
	if upd.Merchant != nil {
		query = query.Set("merchant", *upd.Merchant)
		changed = true
	}
	if upd.Notes != nil {
		query = query.Set("notes", *upd.Notes)
		changed = true
	}
	if upd.Description != nil {
		query = query.Set("description", *upd.Description)
		changed = true
	}

	if changed {
		sql, args, err := query.ToSql()
		if err != nil {
			return nil, err
		}
		tag, err := r.db.Exec(ctx, sql, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update transaction: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrNotFound
		}
	}

	return r.GetByID(ctx, userID, id)
}

func (r *TransactionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := squirrel.Delete("transactions").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TransactionRepository) DeleteByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := squirrel.Delete("transactions").
		Where(squirrel.Eq{"user_id": userID, "id": ids}).
		PlaceholderFormat(squirrel.Dollar)

	return r.execDelete(ctx, query)
}

func (r *TransactionRepository) DeleteMatching(ctx context.Context, userID uuid.UUID, f models.TransactionFilter) (int64, error) {
	query := squirrel.Delete("transactions t").
		Where(filterConditions(userID, f)).
		PlaceholderFormat(squirrel.Dollar)

	return r.execDelete(ctx, query)
}

func (r *TransactionRepository) execDelete(ctx context.Context, query squirrel.DeleteBuilder) (int64, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TransactionRepository) CountByImport(ctx context.Context, importID uuid.UUID) (int, error) {
	query := squirrel.Select("COUNT(*)").
		From("transactions").
		Where(squirrel.Eq{"import_id": importID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.QueryRow(ctx, sql, args...).Scan(&count)
	return count, err
}

// Monthly returns debit and credit totals per calendar month starting at since.
func (r *TransactionRepository) Monthly(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.MonthlySummary, error) {
	query := squirrel.Select(
		"TO_CHAR(DATE_TRUNC('month', date), 'YYYY-MM') AS month",
		"COALESCE(SUM(amount) FILTER (WHERE txn_type = 'debit'), 0)",
		"COALESCE(SUM(amount) FILTER (WHERE txn_type = 'credit'), 0)",
	).
		From("transactions").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"date": since}).
		GroupBy("month").
		OrderBy("month").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly totals: %w", err)
	}
	defer rows.Close()

	out := []models.MonthlySummary{}
	for rows.Next() {
		var m models.MonthlySummary
		if err := rows.Scan(&m.Month, &m.TotalDebit, &m.TotalCredit); err != nil {
			return nil, err
		}
		m.Net = m.TotalCredit.Sub(m.TotalDebit)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CategoryTotals groups amounts of one direction by category; uncategorised
// rows are reported under "Uncategorised".
func (r *TransactionRepository) CategoryTotals(ctx context.Context, userID uuid.UUID, f models.TransactionFilter) ([]models.CategoryTotal, error) {
	query := squirrel.Select(
		"COALESCE(c.name, 'Uncategorised')",
		"COALESCE(c.color, '')",
		"SUM(t.amount)",
		"COUNT(*)",
	).
		From("transactions t").
		LeftJoin("categories c ON c.id = t.category_id").
		Where(filterConditions(userID, f)).
		GroupBy("c.name", "c.color").
		OrderBy("SUM(t.amount) DESC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer rows.Close()

	out := []models.CategoryTotal{}
	for rows.Next() {
		var c models.CategoryTotal
		if err := rows.Scan(&c.Category, &c.Color, &c.Total, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MerchantTotals returns the merchants with the largest debit totals.
func (r *TransactionRepository) MerchantTotals(ctx context.Context, userID uuid.UUID, limit int) ([]models.MerchantTotal, error) {
	query := squirrel.Select("merchant", "SUM(amount)", "COUNT(*)").
		From("transactions").
		Where(squirrel.Eq{"user_id": userID, "txn_type": models.TxnDebit}).
		Where(squirrel.NotEq{"merchant": nil}).
		GroupBy("merchant").
		OrderBy("SUM(amount) DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant totals: %w", err)
	}
	defer rows.Close()

	out := []models.MerchantTotal{}
	for rows.Next() {
		var m models.MerchantTotal
		if err := rows.Scan(&m.Merchant, &m.Total, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Cashflow returns income and expense totals for the filtered period.
func (r *TransactionRepository) Cashflow(ctx context.Context, userID uuid.UUID, f models.TransactionFilter) (*models.Cashflow, error) {
	query := squirrel.Select(
		"COALESCE(SUM(t.amount) FILTER (WHERE t.txn_type = 'credit'), 0)",
		"COALESCE(SUM(t.amount) FILTER (WHERE t.txn_type = 'debit'), 0)",
	).
		From("transactions t").
		Where(filterConditions(userID, f)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var c models.Cashflow
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&c.TotalIncome, &c.TotalExpense); err != nil {
		return nil, fmt.Errorf("failed to query cashflow: %w", err)
	}
	c.Net = c.TotalIncome.Sub(c.TotalExpense)
	return &c, nil
}
