package repository

import (
	"context"
	"errors"
	"fmt"

	"hisabkitab/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrJobNotRunning is returned when a terminal transition targets a job that
// is not in the running state.
var ErrJobNotRunning = errors.New("job is not running")

type ImportRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewImportRepository(db *pgxpool.Pool, logger *zap.Logger) *ImportRepository {
	return &ImportRepository{
		db:     db,
		logger: logger,
	}
}

// CreateWithJob inserts the import and its queued job atomically.
func (r *ImportRepository) CreateWithJob(ctx context.Context, imp *models.StatementImport, job *models.ImportJob) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	importQuery := squirrel.Insert("statement_imports").
		Columns("id", "user_id", "original_filename", "stored_path", "created_at").
		Values(imp.ID, imp.UserID, imp.OriginalFilename, imp.StoredPath, imp.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := importQuery.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert import: %w", err)
	}

	jobQuery := squirrel.Insert("import_jobs").
		Columns("id", "import_id", "status", "created_at").
		Values(job.ID, job.ImportID, job.Status, job.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err = jobQuery.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return tx.Commit(ctx)
}

// ClaimNextJob moves the oldest queued job to running and returns it, or
// returns nil when the queue is empty. Concurrent callers never receive the
// same job: the row is locked with SKIP LOCKED and the update is guarded on
// the queued status.
func (r *ImportRepository) ClaimNextJob(ctx context.Context) (*models.ClaimedJob, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	selectQuery := squirrel.Select("j.id", "j.import_id", "i.user_id", "i.stored_path").
		From("import_jobs j").
		Join("statement_imports i ON i.id = j.import_id").
		Where(squirrel.Eq{"j.status": models.JobQueued}).
		OrderBy("j.created_at", "j.id").
		Limit(1).
		Suffix("FOR UPDATE OF j SKIP LOCKED").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, err
	}

	var job models.ClaimedJob
	err = tx.QueryRow(ctx, sql, args...).Scan(&job.JobID, &job.ImportID, &job.UserID, &job.StoredPath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select queued job: %w", err)
	}

	updateQuery := squirrel.Update("import_jobs").
		Set("status", models.JobRunning).
		Set("started_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": job.JobID, "status": models.JobQueued}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err = updateQuery.ToSql()
	if err != nil {
		return nil, err
	}
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to mark job running: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return &job, nil
}

func (r *ImportRepository) SetPageCount(ctx context.Context, importID uuid.UUID, pageCount int) error {
	query := squirrel.Update("statement_imports").
		Set("page_count", pageCount).
		Where(squirrel.Eq{"id": importID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// SavePage archives the raw model answer for one page.
func (r *ImportRepository) SavePage(ctx context.Context, page *models.ImportPage) error {
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}

	query := squirrel.Insert("import_pages").
		Columns("id", "import_id", "page_number", "image_path", "raw_json").
		Values(page.ID, page.ImportID, page.PageNumber, page.ImagePath, page.RawJSON).
		Suffix("RETURNING created_at").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	return r.db.QueryRow(ctx, sql, args...).Scan(&page.CreatedAt)
}

func (r *ImportRepository) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	return r.finishJob(ctx, jobID, models.JobCompleted, nil)
}

func (r *ImportRepository) FailJob(ctx context.Context, jobID uuid.UUID, message string) error {
	return r.finishJob(ctx, jobID, models.JobFailed, &message)
}

func (r *ImportRepository) finishJob(ctx context.Context, jobID uuid.UUID, status models.JobStatus, message *string) error {
	query := squirrel.Update("import_jobs").
		Set("status", status).
		Set("error_message", message).
		Set("completed_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": jobID, "status": models.JobRunning}).
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
		return fmt.Errorf("%w: %s", ErrJobNotRunning, jobID)
	}
	return nil
}

var jobColumns = []string{
	"j.id", "j.import_id", "j.status", "j.error_message", "j.started_at", "j.completed_at", "j.created_at",
	"i.user_id", "i.original_filename", "i.page_count",
	"COUNT(t.id)",
}

func jobsQuery() squirrel.SelectBuilder {
	return squirrel.Select(jobColumns...).
		From("import_jobs j").
		Join("statement_imports i ON i.id = j.import_id").
		LeftJoin("transactions t ON t.import_id = j.import_id").
		GroupBy("j.id", "i.id").
		PlaceholderFormat(squirrel.Dollar)
}

func scanJob(row pgx.Row) (*models.JobDetails, error) {
	var job models.JobDetails
	err := row.Scan(
		&job.ID, &job.ImportID, &job.Status, &job.ErrorMessage, &job.StartedAt, &job.CompletedAt, &job.CreatedAt,
		&job.UserID, &job.OriginalFilename, &job.PageCount,
		&job.TransactionCount,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns the user's jobs, newest first.
func (r *ImportRepository) ListJobs(ctx context.Context, userID uuid.UUID) ([]*models.JobDetails, error) {
	sql, args, err := jobsQuery().
		Where(squirrel.Eq{"i.user_id": userID}).
		OrderBy("j.created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*models.JobDetails{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJob returns a job owned by userID or ErrNotFound.
func (r *ImportRepository) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.JobDetails, error) {
	sql, args, err := jobsQuery().
		Where(squirrel.Eq{"j.id": jobID, "i.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	job, err := scanJob(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return job, nil
}

func (r *ImportRepository) GetImport(ctx context.Context, importID uuid.UUID) (*models.StatementImport, error) {
	query := squirrel.Select("id", "user_id", "original_filename", "stored_path", "page_count", "created_at").
		From("statement_imports").
		Where(squirrel.Eq{"id": importID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var imp models.StatementImport
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&imp.ID, &imp.UserID, &imp.OriginalFilename, &imp.StoredPath, &imp.PageCount, &imp.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &imp, nil
}

// ListPages returns the archived pages of an import in page order.
func (r *ImportRepository) ListPages(ctx context.Context, importID uuid.UUID) ([]*models.ImportPage, error) {
	query := squirrel.Select("id", "import_id", "page_number", "image_path", "raw_json", "created_at").
		From("import_pages").
		Where(squirrel.Eq{"import_id": importID}).
		OrderBy("page_number").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := []*models.ImportPage{}
	for rows.Next() {
		var p models.ImportPage
		if err := rows.Scan(&p.ID, &p.ImportID, &p.PageNumber, &p.ImagePath, &p.RawJSON, &p.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}
