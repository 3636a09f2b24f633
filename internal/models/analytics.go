package models

import "github.com/shopspring/decimal"

type MonthlySummary struct {
	Month       string          `json:"month"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Net         decimal.Decimal `json:"net"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Color    string          `json:"color,omitempty"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

type MerchantTotal struct {
	Merchant string          `json:"merchant"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

type Cashflow struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Net          decimal.Decimal `json:"net"`
	PeriodFrom   *string         `json:"period_from"`
	PeriodTo     *string         `json:"period_to"`
}
