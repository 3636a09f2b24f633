package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// StatementImport is one uploaded PDF.
type StatementImport struct {
	ID               uuid.UUID `db:"id"`
	UserID           uuid.UUID `db:"user_id"`
	OriginalFilename string    `db:"original_filename"`
	StoredPath       string    `db:"stored_path"`
	PageCount        *int      `db:"page_count"`
	CreatedAt        time.Time `db:"created_at"`
}

// ImportJob tracks processing of a StatementImport. Status only moves
// forward: queued, running, then completed or failed.
type ImportJob struct {
	ID           uuid.UUID  `db:"id"`
	ImportID     uuid.UUID  `db:"import_id"`
	Status       JobStatus  `db:"status"`
	ErrorMessage *string    `db:"error_message"`
	StartedAt    *time.Time `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

// ClaimedJob is a running job together with what the worker needs to process it.
type ClaimedJob struct {
	JobID      uuid.UUID
	ImportID   uuid.UUID
	UserID     uuid.UUID
	StoredPath string
}

// JobDetails is an ImportJob joined with its import, as shown to users.
type JobDetails struct {
	ImportJob
	UserID           uuid.UUID `db:"user_id"`
	OriginalFilename string    `db:"original_filename"`
	PageCount        *int      `db:"page_count"`
	TransactionCount int       `db:"transaction_count"`
}

// ImportPage archives the model's literal answer for one page.
type ImportPage struct {
	ID         uuid.UUID `db:"id"`
	ImportID   uuid.UUID `db:"import_id"`
	PageNumber int       `db:"page_number"`
	ImagePath  string    `db:"image_path"`
	RawJSON    string    `db:"raw_json"`
	CreatedAt  time.Time `db:"created_at"`
}
