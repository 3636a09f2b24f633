package service

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"hisabkitab/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestParseFilter(t *testing.T) {
	categoryID := uuid.New()

	f, err := parseFilter(filterParams{
		Merchant:   "  coffee ",
		CategoryID: categoryID.String(),
		TxnType:    "CREDIT",
		DateFrom:   "2024-01-01",
		DateTo:     "2024-01-31",
		AmountMin:  "10",
		AmountMax:  "99.95",
		Search:     "rent",
	})
	require.NoError(t, err)

	assert.Equal(t, "coffee", f.Merchant)
	assert.Equal(t, "rent", f.Search)
	assert.Equal(t, categoryID, *f.CategoryID)
	assert.Equal(t, models.TxnCredit, f.TxnType)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *f.DateFrom)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *f.DateTo)
	assert.True(t, decimal.RequireFromString("10").Equal(*f.AmountMin))
	assert.True(t, decimal.RequireFromString("99.95").Equal(*f.AmountMax))
}

func TestParseFilterEmpty(t *testing.T) {
	f, err := parseFilter(filterParams{})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionFilter{}, f)
}

func TestParseFilterRejectsBadInput(t *testing.T) {
	cases := map[string]filterParams{
		"category":  {CategoryID: "not-a-uuid"},
		"txn type":  {TxnType: "refund"},
		"date from": {DateFrom: "01/02/2024"},
		"date to":   {DateTo: "yesterday"},
		"amount":    {AmountMin: "ten"},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseFilter(p)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPagination(t *testing.T) {
	page, perPage, limit, offset := pagination(0, 0)
	assert.Equal(t, []int{1, 25, 25, 0}, []int{page, perPage, limit, offset})

	page, perPage, limit, offset = pagination(3, 500)
	assert.Equal(t, []int{3, 100, 100, 200}, []int{page, perPage, limit, offset})

	page, perPage, limit, offset = pagination(2, 10)
	assert.Equal(t, []int{2, 10, 10, 10}, []int{page, perPage, limit, offset})

	page, _, _, offset = pagination(math.MaxInt, 100)
	assert.Equal(t, maxPage, page)
	assert.Equal(t, (maxPage-1)*100, offset)
	assert.Positive(t, offset)
}

func TestParseSort(t *testing.T) {
	sort, err := parseSort("", "")
	require.NoError(t, err)
	assert.Equal(t, "date", sort.Column)
	assert.True(t, sort.Desc)

	sort, err = parseSort("Amount", "asc")
	require.NoError(t, err)
	assert.Equal(t, "amount", sort.Column)
	assert.False(t, sort.Desc)

	_, err = parseSort("created_at; DROP TABLE transactions", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = parseSort("merchant", "sideways")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMonthsSince(t *testing.T) {
	now := time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), monthsSince(now, 0))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), monthsSince(now, 1))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), monthsSince(now, 3))
	assert.Equal(t, time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), monthsSince(now, 1000))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, clampLimit(0))
	assert.Equal(t, 5, clampLimit(5))
	assert.Equal(t, 100, clampLimit(1000))
}

func TestValidateRegistration(t *testing.T) {
	assert.NoError(t, validateRegistration("amira", "a@example.com", "secret"))
	assert.ErrorIs(t, validateRegistration("", "a@example.com", "secret"), ErrValidation)
	assert.ErrorIs(t, validateRegistration("amira", "example.com", "secret"), ErrValidation)
	assert.ErrorIs(t, validateRegistration("amira", "a@example.com", "12345"), ErrValidation)
	assert.Equal(t, "a@example.com", normalizeEmail("  A@Example.COM "))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "statement.pdf", safeFilename("statement.pdf"))
	assert.Equal(t, "passwd", safeFilename("../../etc/passwd"))
	assert.Equal(t, "march.pdf", safeFilename(`C:\Users\me\march.pdf`))
	assert.Equal(t, "my_statement__1_.pdf", safeFilename("my statement (1).pdf"))
	assert.Equal(t, "pdf", safeFilename(".pdf"))
	assert.Equal(t, "ab.pdf", safeFilename("a\xffb.pdf"))
}

func TestIsPDFName(t *testing.T) {
	assert.True(t, isPDFName("statement.pdf"))
	assert.True(t, isPDFName("STATEMENT.PDF"))
	assert.False(t, isPDFName("statement.pdf.exe"))
	assert.False(t, isPDFName("statement"))
}

func TestUploadRejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	s := NewImportService(nil, dir, zap.NewNop())

	_, err := s.Upload(context.Background(), uuid.New(), strings.NewReader("hello"), "notes.txt")
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestToJobResponseCountsOnlyCompletedJobs(t *testing.T) {
	job := &models.JobDetails{TransactionCount: 7}
	job.ID = uuid.New()
	job.ImportID = uuid.New()
	job.Status = models.JobRunning

	assert.Nil(t, toJobResponse(job).TransactionCount)

	job.Status = models.JobCompleted
	resp := toJobResponse(job)
	require.NotNil(t, resp.TransactionCount)
	assert.Equal(t, 7, *resp.TransactionCount)
}

func TestSafeFilenameDropsNUL(t *testing.T) {
	assert.Equal(t, "ab.pdf", safeFilename("a\x00b.pdf"))
}

func TestToTransactionResponse(t *testing.T) {
	importID := uuid.New()
	page := 2
	merchant := "Corner Shop"
	txn := &models.Transaction{
		ID:         uuid.New(),
		ImportID:   &importID,
		PageNumber: &page,
		Date:       time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		Merchant:   &merchant,
		Amount:     decimal.RequireFromString("12.5"),
		TxnType:    models.TxnDebit,
		Balance:    decimal.NewNullDecimal(decimal.RequireFromString("100")),
		Currency:   "USD",
	}

	resp := toTransactionResponse(txn)
	assert.Equal(t, "2024-02-29", resp.Date)
	assert.Equal(t, "12.50", resp.Amount)
	require.NotNil(t, resp.Balance)
	assert.Equal(t, "100.00", *resp.Balance)
	assert.Equal(t, importID.String(), *resp.ImportID)
	assert.Nil(t, resp.CategoryID)
	assert.Nil(t, resp.Description)
}

func TestBuildWorkbook(t *testing.T) {
	desc := "Salary March"
	category := "Income"
	txns := []*models.Transaction{
		{
			Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Description: &desc,
			Category:    &category,
			Amount:      decimal.RequireFromString("2500.00"),
			TxnType:     models.TxnCredit,
			Currency:    "USD",
		},
		{
			Date:     time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			Amount:   decimal.RequireFromString("4.75"),
			TxnType:  models.TxnDebit,
			Balance:  decimal.NewNullDecimal(decimal.RequireFromString("2495.25")),
			Currency: "USD",
		},
	}

	data, err := buildWorkbook(txns)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, []string{"2024-03-01", "Salary March", "", "Income", "credit", "2500", "", "USD"}, rows[1])
	assert.Equal(t, "4.75", rows[2][5])
	assert.Equal(t, "2495.25", rows[2][6])
}

func TestBuildWorkbookEmpty(t *testing.T) {
	data, err := buildWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
