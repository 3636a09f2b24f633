package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hisabkitab/internal/models"
	"hisabkitab/internal/normalize"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu         sync.Mutex
	queue      []*models.ClaimedJob
	status     map[uuid.UUID]models.JobStatus
	errors     map[uuid.UUID]string
	pageCounts map[uuid.UUID]int
	pages      []*models.ImportPage
	claimErrs  []error
}

func newMemStore() *memStore {
	return &memStore{
		status:     map[uuid.UUID]models.JobStatus{},
		errors:     map[uuid.UUID]string{},
		pageCounts: map[uuid.UUID]int{},
	}
}

func (s *memStore) enqueue() *models.ClaimedJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &models.ClaimedJob{
		JobID:      uuid.New(),
		ImportID:   uuid.New(),
		UserID:     uuid.New(),
		StoredPath: "/uploads/statement.pdf",
	}
	s.queue = append(s.queue, job)
	s.status[job.JobID] = models.JobQueued
	return job
}

func (s *memStore) ClaimNextJob(ctx context.Context) (*models.ClaimedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.claimErrs) > 0 {
		err := s.claimErrs[0]
		s.claimErrs = s.claimErrs[1:]
		return nil, err
	}
	for _, job := range s.queue {
		if s.status[job.JobID] == models.JobQueued {
			s.status[job.JobID] = models.JobRunning
			return job, nil
		}
	}
	return nil, nil
}

func (s *memStore) SetPageCount(ctx context.Context, importID uuid.UUID, pageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCounts[importID] = pageCount
	return nil
}

func (s *memStore) SavePage(ctx context.Context, page *models.ImportPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, page)
	return nil
}

func (s *memStore) finish(jobID uuid.UUID, status models.JobStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[jobID] != models.JobRunning {
		return fmt.Errorf("job %s is %s", jobID, s.status[jobID])
	}
	s.status[jobID] = status
	if message != "" {
		s.errors[jobID] = message
	}
	return nil
}

func (s *memStore) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	return s.finish(jobID, models.JobCompleted, "")
}

func (s *memStore) FailJob(ctx context.Context, jobID uuid.UUID, message string) error {
	return s.finish(jobID, models.JobFailed, message)
}

func (s *memStore) jobStatus(jobID uuid.UUID) models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[jobID]
}

type memWriter struct {
	mu    sync.Mutex
	saved map[uuid.UUID][]normalize.Transaction
	pages map[uuid.UUID][]int
}

func newMemWriter() *memWriter {
	return &memWriter{saved: map[uuid.UUID][]normalize.Transaction{}, pages: map[uuid.UUID][]int{}}
}

func (w *memWriter) SaveImported(ctx context.Context, userID, importID uuid.UUID, pageNumber int, txns []normalize.Transaction) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.saved[importID] = append(w.saved[importID], txns...)
	for range txns {
		w.pages[importID] = append(w.pages[importID], pageNumber)
	}
	return len(txns), nil
}

type fakeRasterizer struct {
	pages int
	err   error
	order []uuid.UUID
	mu    sync.Mutex
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, pdfPath string, importID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	f.order = append(f.order, importID)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	paths := make([]string, f.pages)
	for i := range paths {
		paths[i] = fmt.Sprintf("/images/%s/page_%d.jpg", importID, i+1)
	}
	return paths, nil
}

// scriptedExtractor answers page n with responses[n-1].
type scriptedExtractor struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedExtractor) ExtractTransactions(ctx context.Context, imagePath string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "[]", nil
}

const (
	threeTxns = `[
		{"date": "2024-03-01", "merchant": "A", "amount": 10},
		{"date": "2024-03-02", "merchant": "B", "amount": 20},
		{"date": "2024-03-03", "merchant": "C", "amount": 30}
	]`
	truncatedTwo = `[{"date": "2024-03-04", "merchant": "D", "amount": 40}, {"date": "2024-03-05", "merchant": "E", "amount": 50}, {"date": "2024-03-06", "merch`
)

func newWorker(store *memStore, writer *memWriter, r *fakeRasterizer, e Extractor) *Worker {
	return New(store, writer, r, e, normalize.New(), 10*time.Millisecond, zap.NewNop())
}

func TestRunOnceProcessesAllPages(t *testing.T) {
	store := newMemStore()
	writer := newMemWriter()
	extractor := &scriptedExtractor{responses: []string{threeTxns, truncatedTwo}}
	w := newWorker(store, writer, &fakeRasterizer{pages: 2}, extractor)
	job := store.enqueue()

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	assert.Equal(t, models.JobCompleted, store.jobStatus(job.JobID))
	assert.Equal(t, 2, store.pageCounts[job.ImportID])
	assert.Len(t, writer.saved[job.ImportID], 5)
	assert.Equal(t, []int{1, 1, 1, 2, 2}, writer.pages[job.ImportID])

	require.Len(t, store.pages, 2)
	assert.Equal(t, 1, store.pages[0].PageNumber)
	assert.Equal(t, threeTxns, store.pages[0].RawJSON)
	assert.Equal(t, 2, store.pages[1].PageNumber)
	assert.Equal(t, truncatedTwo, store.pages[1].RawJSON)
}

func TestRunOnceFailsJobOnExtractorError(t *testing.T) {
	store := newMemStore()
	writer := newMemWriter()
	extractor := &scriptedExtractor{errs: []error{errors.New("context deadline exceeded")}}
	w := newWorker(store, writer, &fakeRasterizer{pages: 1}, extractor)
	job := store.enqueue()

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	assert.Equal(t, models.JobFailed, store.jobStatus(job.JobID))
	assert.Contains(t, store.errors[job.JobID], "deadline exceeded")
	assert.Empty(t, writer.saved[job.ImportID])
	assert.Empty(t, store.pages)
}

func TestRunOnceKeepsEarlierPagesWhenLaterPageFails(t *testing.T) {
	store := newMemStore()
	writer := newMemWriter()
	extractor := &scriptedExtractor{
		responses: []string{threeTxns},
		errs:      []error{nil, errors.New("backend returned status 500")},
	}
	w := newWorker(store, writer, &fakeRasterizer{pages: 3}, extractor)
	job := store.enqueue()

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.JobFailed, store.jobStatus(job.JobID))
	assert.Contains(t, store.errors[job.JobID], "page 2")
	assert.Len(t, writer.saved[job.ImportID], 3)
	assert.Equal(t, 2, extractor.calls, "page 3 must not be attempted")
}

func TestRunOnceCompletesWithNoTransactions(t *testing.T) {
	store := newMemStore()
	writer := newMemWriter()
	extractor := &scriptedExtractor{responses: []string{"I could not find any transactions on this page. []"}}
	w := newWorker(store, writer, &fakeRasterizer{pages: 1}, extractor)
	job := store.enqueue()

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.JobCompleted, store.jobStatus(job.JobID))
	assert.Empty(t, writer.saved[job.ImportID])
	assert.Len(t, store.pages, 1)
}

func TestRunOnceFailsJobWhenRasterizationFails(t *testing.T) {
	store := newMemStore()
	w := newWorker(store, newMemWriter(), &fakeRasterizer{err: errors.New("cannot open document")}, &scriptedExtractor{})
	job := store.enqueue()

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.JobFailed, store.jobStatus(job.JobID))
	assert.Contains(t, store.errors[job.JobID], "cannot open document")
	_, hasCount := store.pageCounts[job.ImportID]
	assert.False(t, hasCount)
}

type panickingExtractor struct{}

func (panickingExtractor) ExtractTransactions(ctx context.Context, imagePath string) (string, error) {
	var counts map[string]int
	counts[imagePath]++
	return "", nil
}

func TestRunOnceFailsJobWhenStagePanics(t *testing.T) {
	store := newMemStore()
	writer := newMemWriter()
	w := newWorker(store, writer, &fakeRasterizer{pages: 2}, panickingExtractor{})
	job := store.enqueue()

	var processed bool
	var err error
	require.NotPanics(t, func() {
		processed, err = w.RunOnce(context.Background())
	})
	require.NoError(t, err)
	assert.True(t, processed)

	assert.Equal(t, models.JobFailed, store.jobStatus(job.JobID))
	assert.Contains(t, store.errors[job.JobID], "panic")
	assert.Empty(t, writer.saved[job.ImportID])
}

func TestRunOnceStripsNULFromArchivedAnswer(t *testing.T) {
	store := newMemStore()
	writer := newMemWriter()
	raw := "[{\"date\": \"2024-03-01\", \"merchant\": \"Ca\x00fe\", \"amount\": 4}]\x00"
	w := newWorker(store, writer, &fakeRasterizer{pages: 1}, &scriptedExtractor{responses: []string{raw}})
	job := store.enqueue()

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.JobCompleted, store.jobStatus(job.JobID))
	require.Len(t, store.pages, 1)
	assert.NotContains(t, store.pages[0].RawJSON, "\x00")
	require.Len(t, writer.saved[job.ImportID], 1)
	assert.Equal(t, "Cafe", *writer.saved[job.ImportID][0].Merchant)
}

func TestRunOnceWithEmptyQueue(t *testing.T) {
	w := newWorker(newMemStore(), newMemWriter(), &fakeRasterizer{}, &scriptedExtractor{})

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRunOnceIsFIFO(t *testing.T) {
	store := newMemStore()
	rasterizer := &fakeRasterizer{pages: 1}
	w := newWorker(store, newMemWriter(), rasterizer, &scriptedExtractor{})
	first := store.enqueue()
	second := store.enqueue()

	for i := 0; i < 2; i++ {
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []uuid.UUID{first.ImportID, second.ImportID}, rasterizer.order)
}

func TestStartIsIdempotentAndSurvivesClaimErrors(t *testing.T) {
	store := newMemStore()
	store.claimErrs = []error{errors.New("connection refused")}
	job := store.enqueue()

	w := newWorker(store, newMemWriter(), &fakeRasterizer{pages: 1}, &scriptedExtractor{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.True(t, w.Start(ctx))
	assert.False(t, w.Start(ctx))

	assert.Eventually(t, func() bool {
		return store.jobStatus(job.JobID) == models.JobCompleted
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
	w.Wait()
}
