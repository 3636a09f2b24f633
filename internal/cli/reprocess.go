package cli

import (
	"fmt"

	"hisabkitab/internal/models"
	"hisabkitab/internal/normalize"
	"hisabkitab/internal/repository"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type pageReport struct {
	PageNumber   int                     `json:"page_number"`
	ImagePath    string                  `json:"image_path"`
	Strict       bool                    `json:"strict"`
	Issue        string                  `json:"issue,omitempty"`
	Transactions []normalize.Transaction `json:"transactions"`
}

type reprocessReport struct {
	ImportID     string       `json:"import_id"`
	Pages        []pageReport `json:"pages"`
	Transactions int          `json:"transactions"`
	Stored       int          `json:"stored"`
}

func newReprocessCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "reprocess <import-id>",
		Short: "Re-run the normalizer over the archived answers of an import",
		Long:  "Parses every archived page response again, reports which answers needed recovery and compares the result with what is stored. Nothing is written.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid import id: %w", err)
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}

			pool, err := connect(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			imports := repository.NewImportRepository(pool, log)
			txRepo := repository.NewTransactionRepository(pool, repository.NewCategoryRepository(pool, repository.NewCategoryCache(), log), log)

			if _, err := imports.GetImport(cmd.Context(), importID); err != nil {
				return fmt.Errorf("loading import %s: %w", importID, err)
			}
			pages, err := imports.ListPages(cmd.Context(), importID)
			if err != nil {
				return err
			}
			stored, err := txRepo.CountByImport(cmd.Context(), importID)
			if err != nil {
				return err
			}

			report := buildReport(importID, pages, normalize.New())
			report.Stored = stored

			if asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}

			out := cmd.OutOrStdout()
			for _, p := range report.Pages {
				mode := "strict"
				if !p.Strict {
					mode = "recovered"
				}
				fmt.Fprintf(out, "page %d: %d transactions (%s)\n", p.PageNumber, len(p.Transactions), mode)
			}
			fmt.Fprintf(out, "total %d, stored %d\n", report.Transactions, report.Stored)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed transactions as JSON")

	return cmd
}

func buildReport(importID uuid.UUID, pages []*models.ImportPage, parser *normalize.Normalizer) reprocessReport {
	report := reprocessReport{ImportID: importID.String(), Pages: make([]pageReport, 0, len(pages))}
	for _, p := range pages {
		txns := parser.Parse(p.RawJSON)
		page := pageReport{
			PageNumber:   p.PageNumber,
			ImagePath:    p.ImagePath,
			Strict:       true,
			Transactions: txns,
		}
		if err := normalize.Validate(p.RawJSON); err != nil {
			page.Strict = false
			page.Issue = err.Error()
		}
		report.Pages = append(report.Pages, page)
		report.Transactions += len(txns)
	}
	return report
}
