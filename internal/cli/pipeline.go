package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hisabkitab/internal/normalize"
	"hisabkitab/internal/rasterize"
	"hisabkitab/internal/vision"

	"github.com/spf13/cobra"
)

func newRasterizeCommand() *cobra.Command {
	var outDir string
	var dpi, maxDim int

	cmd := &cobra.Command{
		Use:   "rasterize <pdf>",
		Short: "Render a PDF into grayscale page images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			imageCfg := cfg.Image
			if dpi > 0 {
				imageCfg.DPI = dpi
			}
			if maxDim > 0 {
				imageCfg.MaxDimension = maxDim
			}
			if outDir == "" {
				base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				outDir = filepath.Join(cfg.Storage.ImagesDir, "cli", base)
			}

			if err := requireEmptyDir(outDir); err != nil {
				return err
			}

			paths, err := rasterize.New(imageCfg, "", log).RenderTo(cmd.Context(), args[0], outDir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default <images dir>/cli/<pdf name>)")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "render resolution, overrides IMG_DPI")
	cmd.Flags().IntVar(&maxDim, "max-dim", 0, "longest side in pixels, overrides IMG_MAX_DIMENSION")

	return cmd
}

// requireEmptyDir refuses directories with content since a failed render
// removes its output directory.
func requireEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %s is not empty", dir)
	}
	return nil
}

func newExtractCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Send one page image to the vision backend and print its raw answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Vision.Backend = strings.ToLower(backend)
			}

			adapter, err := vision.New(cmd.Context(), cfg.Vision, log)
			if err != nil {
				return err
			}

			raw, err := adapter.ExtractTransactions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "ollama, lmstudio, gemini or gigachat; overrides LLM_BACKEND")

	return cmd
}

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Normalize raw model output into transactions",
		Long:  "Reads a model answer from a file, or stdin when the argument is - or missing, and prints the transactions the importer would store.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), normalize.Parse(string(raw)))
		},
	}
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", args[0], err)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
