// Package normalize turns the free-form text returned by a vision model into
// validated transaction records. Parse never fails: malformed, truncated or
// chatty responses degrade to fewer (possibly zero) records.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TxnDebit  = "debit"
	TxnCredit = "credit"

	defaultCurrency = "USD"

	// Amounts with more integer digits than this are treated as garbage.
	maxIntegerDigits = 15
)

// Transaction is one cleaned record ready for persistence.
type Transaction struct {
	Date        time.Time           `json:"date"`
	Description *string             `json:"description,omitempty"`
	Merchant    *string             `json:"merchant,omitempty"`
	Amount      decimal.Decimal     `json:"amount"`
	TxnType     string              `json:"txn_type"`
	Balance     decimal.NullDecimal `json:"balance"`
	Currency    string              `json:"currency"`
	Category    *string             `json:"category,omitempty"`
}

var (
	fenceRe      = regexp.MustCompile("```(?:json)?")
	arrayRe      = regexp.MustCompile(`(?s)\[.*\]`)
	openArrayRe  = regexp.MustCompile(`(?s)\[.*`)
	flatObjectRe = regexp.MustCompile(`\{[^{}]*\}`)
	amountJunkRe = regexp.MustCompile(`[^\d.\-]`)

	repairSuffixes = []string{"]}", "}", "]", "}]"}

	// Tried in order; the first layout that parses wins, so an ambiguous
	// 01/02/2024 is read day-first.
	dateLayouts = []string{
		"2006-1-2",
		"2/1/2006",
		"1/2/2006",
		"2-1-2006",
		"2 Jan 2006",
		"Jan 2, 2006",
	}
)

// Normalizer parses model output. The zero value is not usable; use New.
type Normalizer struct {
	now func() time.Time
}

func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock returns a Normalizer that stamps undated records using now.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Parse is shorthand for New().Parse(raw).
func Parse(raw string) []Transaction {
	return New().Parse(raw)
}

// Parse extracts every valid transaction from raw, preserving the order in
// which the model listed them.
func (n *Normalizer) Parse(raw string) []Transaction {
	items := extractItems(raw)

	out := make([]Transaction, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if txn, ok := n.clean(obj); ok {
			out = append(out, txn)
		}
	}
	return out
}

// extractItems runs the recovery cascade and returns the candidate elements.
func extractItems(raw string) []any {
	cleaned := fenceRe.ReplaceAllString(raw, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSpace(strings.Trim(cleaned, "`"))

	data, ok := decode(cleaned)

	if !ok {
		if m := arrayRe.FindString(cleaned); m != "" {
			data, ok = decode(m)
		}
	}

	if !ok {
		if m := openArrayRe.FindString(cleaned); m != "" {
			fragment := strings.TrimRight(strings.TrimSpace(m), ",")
			for _, suffix := range repairSuffixes {
				if data, ok = decode(fragment + suffix); ok {
					break
				}
			}
		}
	}

	if !ok {
		var objects []any
		for _, m := range flatObjectRe.FindAllString(cleaned, -1) {
			if obj, ok := decode(m); ok {
				objects = append(objects, obj)
			}
		}
		data = objects
	}

	switch v := data.(type) {
	case []any:
		return v
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
		return []any{v}
	default:
		return nil
	}
}

// decode parses s as exactly one JSON value, keeping numbers as json.Number.
func decode(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return v, true
}

func (n *Normalizer) clean(raw map[string]any) (Transaction, bool) {
	amount, ok := toDecimal(raw["amount"])
	if !ok {
		return Transaction{}, false
	}

	txn := Transaction{
		Date:        n.parseDate(raw["date"]),
		Description: optionalText(raw["description"]),
		Merchant:    optionalText(raw["merchant"]),
		Amount:      amount.Abs(),
		TxnType:     parseTxnType(raw["txn_type"]),
		Currency:    parseCurrency(raw["currency"]),
		Category:    optionalText(raw["category"]),
	}
	if txn.Merchant != nil {
		m := truncateRunes(*txn.Merchant, maxMerchantLength)
		txn.Merchant = &m
	}
	if balance, ok := toDecimal(raw["balance"]); ok {
		txn.Balance = decimal.NewNullDecimal(balance)
	}
	return txn, true
}

// toDecimal accepts JSON numbers and strings such as "$1,234.56" or "-42".
func toDecimal(v any) (decimal.Decimal, bool) {
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case string:
		s = amountJunkRe.ReplaceAllString(val, "")
	default:
		return decimal.Decimal{}, false
	}
	if s == "" {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if int(d.NumDigits())+int(d.Exponent()) > maxIntegerDigits {
		return decimal.Decimal{}, false
	}
	return d, true
}

func (n *Normalizer) parseDate(v any) time.Time {
	if s := strings.TrimSpace(text(v)); s != "" {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	now := n.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func parseTxnType(v any) string {
	switch t := strings.ToLower(strings.TrimSpace(text(v))); t {
	case TxnDebit, TxnCredit:
		return t
	default:
		return TxnDebit
	}
}

func parseCurrency(v any) string {
	c := []rune(strings.ToUpper(strings.TrimSpace(text(v))))
	if len(c) == 0 {
		return defaultCurrency
	}
	if len(c) > 3 {
		c = c[:3]
	}
	return string(c)
}

func optionalText(v any) *string {
	s := strings.TrimSpace(text(v))
	if s == "" {
		return nil
	}
	return &s
}

// text renders scalar JSON values as strings; null and containers become "".
func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return SanitizeText(val)
	case json.Number:
		return val.String()
	case bool:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
