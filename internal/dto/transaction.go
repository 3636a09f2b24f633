package dto

type TransactionResponse struct {
	ID           string  `json:"id"`
	ImportID     *string `json:"import_id"`
	PageNumber   *int    `json:"page_number"`
	Date         string  `json:"date"`
	Description  *string `json:"description"`
	Merchant     *string `json:"merchant"`
	CategoryID   *string `json:"category_id"`
	CategoryName *string `json:"category_name"`
	Amount       string  `json:"amount"`
	TxnType      string  `json:"txn_type"`
	Balance      *string `json:"balance"`
	Currency     string  `json:"currency"`
	Notes        *string `json:"notes"`
	CreatedAt    string  `json:"created_at"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Page         int                   `json:"page"`
	PerPage      int                   `json:"per_page"`
	Total        int                   `json:"total"`
	TotalPages   int                   `json:"total_pages"`
}

// TransactionQuery carries the listing query string.
type TransactionQuery struct {
	Merchant   string `query:"merchant"`
	CategoryID string `query:"category_id"`
	TxnType    string `query:"txn_type"`
	DateFrom   string `query:"date_from"`
	DateTo     string `query:"date_to"`
	AmountMin  string `query:"amount_min"`
	AmountMax  string `query:"amount_max"`
	Search     string `query:"search"`
	SortBy     string `query:"sort_by"`
	SortDir    string `query:"sort_dir"`
	Page       int    `query:"page"`
	PerPage    int    `query:"per_page"`
}

type UpdateTransactionRequest struct {
	CategoryID  *string `json:"category_id"`
	Merchant    *string `json:"merchant"`
	Notes       *string `json:"notes"`
	Description *string `json:"description"`
}

// BulkDeleteRequest deletes either the listed ids or, with All set, every
// transaction matching the embedded filters.
type BulkDeleteRequest struct {
	IDs        []string `json:"ids"`
	All        bool     `json:"all"`
	Merchant   string   `json:"merchant"`
	CategoryID string   `json:"category_id"`
	TxnType    string   `json:"txn_type"`
	DateFrom   string   `json:"date_from"`
	DateTo     string   `json:"date_to"`
	AmountMin  string   `json:"amount_min"`
	AmountMax  string   `json:"amount_max"`
	Search     string   `json:"search"`
}

type BulkDeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

type CategoryResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
	IsGlobal bool   `json:"is_global"`
}
