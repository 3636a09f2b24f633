package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TxnType string

const (
	TxnDebit  TxnType = "debit"
	TxnCredit TxnType = "credit"
)

// Transaction is a single statement line. Amount is never negative; the
// direction is carried by TxnType.
type Transaction struct {
	ID          uuid.UUID           `db:"id"`
	UserID      uuid.UUID           `db:"user_id"`
	ImportID    *uuid.UUID          `db:"import_id"`
	PageNumber  *int                `db:"page_number"`
	Date        time.Time           `db:"date"`
	Description *string             `db:"description"`
	Merchant    *string             `db:"merchant"`
	CategoryID  *uuid.UUID          `db:"category_id"`
	Category    *string             `db:"category_name"`
	Amount      decimal.Decimal     `db:"amount"`
	TxnType     TxnType             `db:"txn_type"`
	Balance     decimal.NullDecimal `db:"balance"`
	Currency    string              `db:"currency"`
	Notes       *string             `db:"notes"`
	CreatedAt   time.Time           `db:"created_at"`
}

// TransactionFilter narrows transaction listings, exports and bulk deletes.
type TransactionFilter struct {
	Merchant   string
	CategoryID *uuid.UUID
	TxnType    TxnType
	DateFrom   *time.Time
	DateTo     *time.Time
	AmountMin  *decimal.Decimal
	AmountMax  *decimal.Decimal
	Search     string
}

// TransactionUpdate holds the user-editable fields; nil means unchanged.
type TransactionUpdate struct {
	CategoryID  *uuid.UUID
	Merchant    *string
	Notes       *string
	Description *string
}
