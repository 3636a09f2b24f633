// Package worker runs queued statement imports through rasterization,
// extraction, normalization and persistence.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hisabkitab/internal/models"
	"hisabkitab/internal/normalize"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStore is the job queue and page archive.
type JobStore interface {
	ClaimNextJob(ctx context.Context) (*models.ClaimedJob, error)
	SetPageCount(ctx context.Context, importID uuid.UUID, pageCount int) error
	SavePage(ctx context.Context, page *models.ImportPage) error
	CompleteJob(ctx context.Context, jobID uuid.UUID) error
	FailJob(ctx context.Context, jobID uuid.UUID, message string) error
}

// TransactionWriter persists one page of normalized transactions atomically.
type TransactionWriter interface {
	SaveImported(ctx context.Context, userID, importID uuid.UUID, pageNumber int, txns []normalize.Transaction) (int, error)
}

type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, importID uuid.UUID) ([]string, error)
}

type Extractor interface {
	ExtractTransactions(ctx context.Context, imagePath string) (string, error)
}

type Parser interface {
	Parse(raw string) []normalize.Transaction
}

// Worker processes one job at a time on a single background goroutine.
type Worker struct {
	store        JobStore
	writer       TransactionWriter
	rasterizer   Rasterizer
	extractor    Extractor
	parser       Parser
	pollInterval time.Duration
	logger       *zap.Logger

	started atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func New(store JobStore, writer TransactionWriter, rasterizer Rasterizer, extractor Extractor, parser Parser, pollInterval time.Duration, logger *zap.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Worker{
		store:        store,
		writer:       writer,
		rasterizer:   rasterizer,
		extractor:    extractor,
		parser:       parser,
		pollInterval: pollInterval,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Start launches the polling loop. Only the first call starts anything; it
// reports whether this call did. The loop stops when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) bool {
	if !w.started.CompareAndSwap(false, true) {
		return false
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.done)
		w.loop(ctx)
	}()

	w.logger.Info("Import worker started", zap.Duration("poll_interval", w.pollInterval))
	return true
}

// Wait blocks until the loop started by Start has exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Done is closed when the loop exits.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.logger.Info("Import worker stopped")
			return
		}

		processed, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("Import worker iteration failed", zap.Error(err))
		}
		if processed && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
		case <-time.After(w.pollInterval):
		}
	}
}

// RunOnce claims the oldest queued job and processes it to a terminal state.
// It returns false when there was nothing to claim.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	// A claimed job always reaches a terminal state, even during shutdown.
	jobCtx := context.WithoutCancel(ctx)
	log := w.logger.With(
		zap.String("job_id", job.JobID.String()),
		zap.String("import_id", job.ImportID.String()),
	)
	log.Info("Processing import")

	count, procErr := w.safeProcess(jobCtx, job, log)
	if procErr != nil {
		log.Error("Import failed", zap.Error(procErr))
		if err := w.store.FailJob(jobCtx, job.JobID, procErr.Error()); err != nil {
			return true, fmt.Errorf("failed to mark job %s failed: %w", job.JobID, err)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(jobCtx, job.JobID); err != nil {
		return true, fmt.Errorf("failed to mark job %s completed: %w", job.JobID, err)
	}
	log.Info("Import completed", zap.Int("transactions", count))
	return true, nil
}

// safeProcess turns a panic in any pipeline stage into a job failure.
func (w *Worker) safeProcess(ctx context.Context, job *models.ClaimedJob, log *zap.Logger) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Import panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.process(ctx, job, log)
}

func (w *Worker) process(ctx context.Context, job *models.ClaimedJob, log *zap.Logger) (int, error) {
	images, err := w.rasterizer.Rasterize(ctx, job.StoredPath, job.ImportID)
	if err != nil {
		return 0, fmt.Errorf("rasterize: %w", err)
	}
	if err := w.store.SetPageCount(ctx, job.ImportID, len(images)); err != nil {
		return 0, fmt.Errorf("update page count: %w", err)
	}

	total := 0
	for i, imagePath := range images {
		pageNumber := i + 1

		raw, err := w.extractor.ExtractTransactions(ctx, imagePath)
		if err != nil {
			return total, fmt.Errorf("page %d: extract: %w", pageNumber, err)
		}
		raw = normalize.SanitizeText(raw)

		page := &models.ImportPage{
			ImportID:   job.ImportID,
			PageNumber: pageNumber,
			ImagePath:  imagePath,
			RawJSON:    raw,
		}
		if err := w.store.SavePage(ctx, page); err != nil {
			return total, fmt.Errorf("page %d: archive response: %w", pageNumber, err)
		}

		txns := w.parser.Parse(raw)
		n, err := w.writer.SaveImported(ctx, job.UserID, job.ImportID, pageNumber, txns)
		if err != nil {
			return total, fmt.Errorf("page %d: save transactions: %w", pageNumber, err)
		}
		total += n

		log.Info("Page processed",
			zap.Int("page", pageNumber),
			zap.Int("pages", len(images)),
			zap.Int("transactions", n),
		)
	}
	return total, nil
}
