package normalize

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func parse(raw string) []Transaction {
	return NewWithClock(func() time.Time { return fixedNow }).Parse(raw)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func merchants(txns []Transaction) []string {
	out := make([]string, 0, len(txns))
	for _, txn := range txns {
		if txn.Merchant == nil {
			out = append(out, "")
			continue
		}
		out = append(out, *txn.Merchant)
	}
	return out
}

func TestParseCleanArrayKeepsOrder(t *testing.T) {
	raw := `[
		{"date": "2024-01-03", "merchant": "Alpha", "amount": 10.5, "txn_type": "debit"},
		{"date": "2024-01-01", "merchant": "Bravo", "amount": 20, "txn_type": "credit"},
		{"date": "2024-01-02", "merchant": "Charlie", "amount": "30.00"}
	]`

	txns := parse(raw)
	require.Len(t, txns, 3)
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, merchants(txns))
	assert.Equal(t, TxnCredit, txns[1].TxnType)
	assertAmount(t, "10.5", txns[0].Amount)
}

func TestParseStripsFences(t *testing.T) {
	raw := "```json\n[{\"date\": \"2024-05-01\", \"amount\": 12.3, \"merchant\": \"Cafe\"}]\n```"

	txns := parse(raw)
	require.Len(t, txns, 1)
	assert.Equal(t, "Cafe", *txns[0].Merchant)
}

func TestParseFindsArrayInsideProse(t *testing.T) {
	raw := "Sure! Here are the transactions I found:\n" +
		`[{"amount": 1, "merchant": "A"}, {"amount": 2, "merchant": "B"}]` +
		"\nLet me know if you need anything else."

	txns := parse(raw)
	assert.Equal(t, []string{"A", "B"}, merchants(txns))
}

func TestParseRecoversTruncatedArray(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "cut inside third object",
			raw:  `[{"amount": 10, "merchant": "A"}, {"amount": 20, "merchant": "B"}, {"date": "2024-01-03", "amo`,
			want: []string{"A", "B"},
		},
		{
			name: "cut after trailing comma",
			raw:  "[{\"amount\": 10, \"merchant\": \"A\"}, {\"amount\": 20, \"merchant\": \"B\"},\n  ",
			want: []string{"A", "B"},
		},
		{
			name: "cut before final object brace",
			raw:  `[{"amount": 10, "merchant": "A", "meta": {"k": 1}}, {"amount": 20, "merchant": "B"`,
			want: []string{"A", "B"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, merchants(parse(tc.raw)))
		})
	}
}

func TestParseSingleObject(t *testing.T) {
	txns := parse(`{"amount": "5.00", "merchant": "Solo"}`)
	require.Len(t, txns, 1)
	assert.Equal(t, "Solo", *txns[0].Merchant)
}

func TestParseEmptyResults(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"I could not find any transactions on this page. []",
		"[]",
		"{}",
		"null",
		`[1, "two", null, true]`,
		"no json here at all",
		`[{"merchant": "no amount"}]`,
	}

	for _, raw := range inputs {
		assert.Empty(t, parse(raw), "input %q", raw)
	}
}

func TestParseAmounts(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"$1,234.56"`, "1234.56"},
		{`-42`, "42"},
		{`"-42.50"`, "42.5"},
		{`"(12.00)"`, "12"},
		{`1e3`, "1000"},
		{`0`, "0"},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			txns := parse(`[{"amount": ` + tc.raw + `}]`)
			require.Len(t, txns, 1)
			assertAmount(t, tc.want, txns[0].Amount)
			assert.False(t, txns[0].Amount.IsNegative())
		})
	}
}

func TestParseDropsUnparsableAmounts(t *testing.T) {
	raw := `[
		{"amount": "abc", "merchant": "letters"},
		{"amount": null, "merchant": "null"},
		{"amount": "", "merchant": "empty"},
		{"amount": "1.2.3", "merchant": "dots"},
		{"amount": 1e400, "merchant": "huge"},
		{"amount": {"v": 1}, "merchant": "object"},
		{"amount": 7, "merchant": "kept"}
	]`

	assert.Equal(t, []string{"kept"}, merchants(parse(raw)))
}

func TestParseDates(t *testing.T) {
	want := day(2023, time.December, 31)
	inputs := []string{
		"2023-12-31",
		"31/12/2023",
		"12/31/2023",
		"31-12-2023",
		"31 Dec 2023",
		"Dec 31, 2023",
		" 2023-12-31 ",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			txns := parse(`[{"amount": 1, "date": "` + in + `"}]`)
			require.Len(t, txns, 1)
			assert.True(t, want.Equal(txns[0].Date), "got %s", txns[0].Date)
		})
	}
}

func TestParseAmbiguousDateIsDayFirst(t *testing.T) {
	txns := parse(`[{"amount": 1, "date": "01/02/2024"}]`)
	require.Len(t, txns, 1)
	assert.True(t, day(2024, time.February, 1).Equal(txns[0].Date))
}

func TestParseUnknownDateFallsBackToToday(t *testing.T) {
	txns := parse(`[{"amount": 1, "date": "yesterday"}, {"amount": 2}, {"amount": 3, "date": "2023-02-30"}]`)
	require.Len(t, txns, 3)

	today := day(2025, time.March, 14)
	for _, txn := range txns {
		assert.True(t, today.Equal(txn.Date), "got %s", txn.Date)
	}
}

func TestParseFieldDefaults(t *testing.T) {
	raw := `[
		{"amount": 1, "txn_type": "CREDIT", "currency": "inr", "description": "  Salary  ", "merchant": "   ", "category": " Income "},
		{"amount": 2, "txn_type": "refund", "currency": "rupees"},
		{"amount": 3, "currency": ""}
	]`

	txns := parse(raw)
	require.Len(t, txns, 3)

	assert.Equal(t, TxnCredit, txns[0].TxnType)
	assert.Equal(t, "INR", txns[0].Currency)
	require.NotNil(t, txns[0].Description)
	assert.Equal(t, "Salary", *txns[0].Description)
	assert.Nil(t, txns[0].Merchant)
	require.NotNil(t, txns[0].Category)
	assert.Equal(t, "Income", *txns[0].Category)

	assert.Equal(t, TxnDebit, txns[1].TxnType)
	assert.Equal(t, "RUP", txns[1].Currency)
	assert.Nil(t, txns[1].Category)

	assert.Equal(t, TxnDebit, txns[2].TxnType)
	assert.Equal(t, "USD", txns[2].Currency)
}

func TestParseBalance(t *testing.T) {
	txns := parse(`[{"amount": 1, "balance": "1,000.00"}, {"amount": 2, "balance": "n/a"}, {"amount": 3, "balance": -5.25}]`)
	require.Len(t, txns, 3)

	require.True(t, txns[0].Balance.Valid)
	assertAmount(t, "1000", txns[0].Balance.Decimal)
	assert.False(t, txns[1].Balance.Valid)
	require.True(t, txns[2].Balance.Valid)
	assertAmount(t, "-5.25", txns[2].Balance.Decimal)
}

func TestParseStripsNUL(t *testing.T) {
	txns := parse(`[{"amount": 5, "description": "a\u0000b", "merchant": "\u0000Shop", "currency": "U\u0000SD", "category": "Fo\u0000od"}]`)
	require.Len(t, txns, 1)

	require.NotNil(t, txns[0].Description)
	assert.Equal(t, "ab", *txns[0].Description)
	assert.Equal(t, "Shop", *txns[0].Merchant)
	assert.Equal(t, "USD", txns[0].Currency)
	assert.Equal(t, "Food", *txns[0].Category)
}

func TestParseTruncatesLongMerchant(t *testing.T) {
	long := strings.Repeat("é", maxMerchantLength+40)
	txns := parse(`[{"amount": 5, "merchant": "` + long + `"}, {"amount": 6, "merchant": "Corner Shop"}]`)
	require.Len(t, txns, 2)

	require.NotNil(t, txns[0].Merchant)
	assert.Equal(t, maxMerchantLength, utf8.RuneCountInString(*txns[0].Merchant))
	assert.Equal(t, "Corner Shop", *txns[1].Merchant)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "plain", SanitizeText("plain"))
	assert.Equal(t, "ab", SanitizeText("a\x00b"))
	assert.Equal(t, "ok", SanitizeText("o\xffk"))
	assert.Equal(t, "", SanitizeText("\x00\xfe"))
}

func TestParseSurvivesHostileInput(t *testing.T) {
	inputs := []string{
		strings.Repeat("[", 20000),
		strings.Repeat("{", 20000),
		strings.Repeat(`{"amount": 1},`, 500),
		"```",
		"``````json```",
		"[{\"amount\": \"\u0000\"}]",
		"[\"\xff\xfe\"]",
		`[{"amount": 1}]]]]`,
		`}{][`,
	}

	for _, raw := range inputs {
		assert.NotPanics(t, func() { parse(raw) })
	}
}

func FuzzParse(f *testing.F) {
	f.Add(`[{"date": "2024-01-01", "amount": "12.50", "txn_type": "debit"}]`)
	f.Add("```json\n[{\"amount\": 1}")
	f.Add(`Here: [{"amount": -3}, {"amount": "x"}`)
	f.Add(`{"amount": 1e3}`)

	f.Fuzz(func(t *testing.T, raw string) {
		for _, txn := range Parse(raw) {
			if txn.Amount.IsNegative() {
				t.Fatalf("negative amount %s from %q", txn.Amount, raw)
			}
			if txn.TxnType != TxnDebit && txn.TxnType != TxnCredit {
				t.Fatalf("unexpected txn_type %q", txn.TxnType)
			}
		}
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(`[]`))
	assert.NoError(t, Validate(` [{"date": "2024-01-05", "amount": 12.5, "txn_type": "debit", "balance": null}] `))
	assert.NoError(t, Validate(`[{"date": "05/01/2024", "amount": "1,200.00", "merchant": "Rent"}]`))

	assert.Error(t, Validate("```json\n[]\n```"), "fenced answers needed recovery")
	assert.Error(t, Validate(`{"date": "2024-01-05", "amount": 1}`), "single object")
	assert.Error(t, Validate(`[{"date": "2024-01-05"}]`), "missing amount")
	assert.Error(t, Validate(`[{"date": "2024-01-05", "amount": true}]`))
	assert.Error(t, Validate(`[{"date": "2024-01-05", "amount": 1, "txn_type": "refund"}]`))
	assert.Error(t, Validate(`[{"date": "2024-01-05", "amount": 1}`), "truncated")
}
