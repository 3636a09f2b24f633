package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hisabkitab/internal/models"
	"hisabkitab/internal/normalize"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelAnswer = "Here you go:\n```json\n" +
	`[{"date": "2024-03-01", "description": "Salary", "amount": "2,500.00", "txn_type": "credit"},` +
	` {"date": "2024-03-02", "merchant": "Cafe", "amount": 4.5}, {"date": "2024-03-03", "amo` +
	"\n```"

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "seed", "rasterize", "extract", "parse", "reprocess"}, names)
}

func TestParseFromStdin(t *testing.T) {
	out, err := run(t, modelAnswer, "parse")
	require.NoError(t, err)

	var txns []normalize.Transaction
	require.NoError(t, json.Unmarshal([]byte(out), &txns))
	require.Len(t, txns, 2)
	assert.Equal(t, "2500", txns[0].Amount.String())
	assert.Equal(t, normalize.TxnCredit, txns[0].TxnType)
	assert.Equal(t, "Cafe", *txns[1].Merchant)
	assert.Equal(t, normalize.TxnDebit, txns[1].TxnType)
}

func TestParseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.txt")
	require.NoError(t, os.WriteFile(path, []byte(modelAnswer), 0o644))

	out, err := run(t, "", "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"Salary"`)
}

func TestParseGarbagePrintsEmptyList(t *testing.T) {
	out, err := run(t, "the page is blank", "parse", "-")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestParseMissingFile(t *testing.T) {
	_, err := run(t, "", "parse", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestCommandsValidateArgs(t *testing.T) {
	_, err := run(t, "", "rasterize")
	assert.Error(t, err)

	_, err = run(t, "", "extract")
	assert.Error(t, err)

	_, err = run(t, "", "reprocess", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid import id")
}

func TestBuildReport(t *testing.T) {
	importID := uuid.New()
	pages := []*models.ImportPage{
		{PageNumber: 1, ImagePath: "page_1.jpg", RawJSON: modelAnswer},
		{PageNumber: 2, ImagePath: "page_2.jpg", RawJSON: "no transactions"},
		{PageNumber: 3, ImagePath: "page_3.jpg", RawJSON: `[{"date": "2024-03-09", "amount": 7}]`},
	}

	report := buildReport(importID, pages, normalize.New())
	assert.Equal(t, importID.String(), report.ImportID)
	assert.Equal(t, 3, report.Transactions)
	require.Len(t, report.Pages, 3)
	assert.Len(t, report.Pages[0].Transactions, 2)
	assert.False(t, report.Pages[0].Strict)
	assert.NotEmpty(t, report.Pages[0].Issue)
	assert.Empty(t, report.Pages[1].Transactions)
	assert.True(t, report.Pages[2].Strict)
	assert.Empty(t, report.Pages[2].Issue)
}

func TestRequireEmptyDir(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, requireEmptyDir(dir))
	assert.NoError(t, requireEmptyDir(filepath.Join(dir, "new")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), nil, 0o644))
	assert.Error(t, requireEmptyDir(dir))
}
