package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hisabkitab/internal/dto"
	"hisabkitab/internal/models"
	"hisabkitab/internal/normalize"
	"hisabkitab/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidFile = errors.New("only PDF files are accepted")
	ErrNotFound    = errors.New("not found")
)

type ImportService struct {
	importRepo *repository.ImportRepository
	uploadDir  string
	logger     *zap.Logger
}

func NewImportService(
	importRepo *repository.ImportRepository,
	uploadDir string,
	logger *zap.Logger,
) *ImportService {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		logger.Warn("Failed to create upload directory", zap.Error(err))
	}

	return &ImportService{
		importRepo: importRepo,
		uploadDir:  uploadDir,
		logger:     logger,
	}
}

// Upload stores the PDF and queues it for the worker. The import and its job
// are created together so the worker never sees one without the other.
func (s *ImportService) Upload(ctx context.Context, userID uuid.UUID, file io.Reader, fileName string) (*dto.UploadResponse, error) {
	if !isPDFName(fileName) {
		return nil, ErrInvalidFile
	}

	filePath, err := s.store(file, fileName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	imp := &models.StatementImport{
		ID:               uuid.New(),
		UserID:           userID,
		OriginalFilename: normalize.SanitizeText(fileName),
		StoredPath:       filePath,
		CreatedAt:        now,
	}
	job := &models.ImportJob{
		ID:        uuid.New(),
		ImportID:  imp.ID,
		Status:    models.JobQueued,
		CreatedAt: now,
	}

	if err := s.importRepo.CreateWithJob(ctx, imp, job); err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to create import: %w", err)
	}

	s.logger.Info("Statement queued",
		zap.String("import_id", imp.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", userID.String()),
	)

	return &dto.UploadResponse{
		ImportID: imp.ID.String(),
		JobID:    job.ID.String(),
		Status:   string(job.Status),
		Filename: imp.OriginalFilename,
	}, nil
}

func (s *ImportService) store(file io.Reader, fileName string) (string, error) {
	name := safeFilename(fileName)
	if name == "" {
		name = "statement.pdf"
	}
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")
	filePath := filepath.Join(s.uploadDir, prefix+"_"+name)

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return filePath, nil
}

func (s *ImportService) ListJobs(ctx context.Context, userID uuid.UUID) (*dto.JobListResponse, error) {
	jobs, err := s.importRepo.ListJobs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	resp := &dto.JobListResponse{Jobs: make([]dto.JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, *toJobResponse(job))
	}
	return resp, nil
}

func (s *ImportService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*dto.JobResponse, error) {
	job, err := s.importRepo.GetJob(ctx, userID, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return toJobResponse(job), nil
}

// toJobResponse reports a transaction count only once the job has completed.
func toJobResponse(job *models.JobDetails) *dto.JobResponse {
	resp := &dto.JobResponse{
		ID:               job.ID.String(),
		ImportID:         job.ImportID.String(),
		OriginalFilename: job.OriginalFilename,
		PageCount:        job.PageCount,
		Status:           string(job.Status),
		ErrorMessage:     job.ErrorMessage,
		StartedAt:        formatTimePtr(job.StartedAt),
		CompletedAt:      formatTimePtr(job.CompletedAt),
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
	}
	if job.Status == models.JobCompleted {
		count := job.TransactionCount
		resp.TransactionCount = &count
	}
	return resp
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(name)), ".pdf")
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
