package dto

type UploadResponse struct {
	ImportID string `json:"import_id"`
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

type JobResponse struct {
	ID               string  `json:"id"`
	ImportID         string  `json:"import_id"`
	OriginalFilename string  `json:"original_filename"`
	PageCount        *int    `json:"page_count"`
	Status           string  `json:"status"`
	ErrorMessage     *string `json:"error_message"`
	StartedAt        *string `json:"started_at"`
	CompletedAt      *string `json:"completed_at"`
	CreatedAt        string  `json:"created_at"`
	TransactionCount *int    `json:"transaction_count,omitempty"`
}

type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}
