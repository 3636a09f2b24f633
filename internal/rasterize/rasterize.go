// Package rasterize renders PDF pages into grayscale JPEG images sized for a
// vision model.
package rasterize

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"

	"hisabkitab/pkg/config"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const renderAttempts = 3

type Rasterizer struct {
	cfg       config.ImageConfig
	outputDir string
	logger    *zap.Logger
}

func New(cfg config.ImageConfig, outputDir string, logger *zap.Logger) *Rasterizer {
	return &Rasterizer{
		cfg:       cfg,
		outputDir: outputDir,
		logger:    logger,
	}
}

// Rasterize renders every page of pdfPath into <outputDir>/<importID>/page_<n>.jpg
// and returns the paths in page order. On failure nothing is left behind.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath string, importID uuid.UUID) ([]string, error) {
	return r.RenderTo(ctx, pdfPath, filepath.Join(r.outputDir, importID.String()))
}

// RenderTo is Rasterize with an explicit destination directory.
func (r *Rasterizer) RenderTo(ctx context.Context, pdfPath, dir string) ([]string, error) {
	paths, err := r.render(ctx, pdfPath, dir)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			r.logger.Warn("Failed to clean up partial render", zap.String("dir", dir), zap.Error(rmErr))
		}
		return nil, err
	}
	return paths, nil
}

func (r *Rasterizer) render(ctx context.Context, pdfPath, dir string) ([]string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	paths := make([]string, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := r.renderPage(doc, i)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}

		path := filepath.Join(dir, fmt.Sprintf("page_%d.jpg", i+1))
		if err := writeJPEG(path, toGray(img), r.cfg.JPEGQuality); err != nil {
			return nil, fmt.Errorf("failed to write page %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}

	r.logger.Info("PDF rasterized",
		zap.String("pdf", pdfPath),
		zap.Int("pages", pageCount),
	)
	return paths, nil
}

// renderPage renders at the configured DPI, lowering it when the page would
// exceed the maximum dimension.
func (r *Rasterizer) renderPage(doc *fitz.Document, page int) (image.Image, error) {
	bounds, err := doc.Bound(page)
	if err != nil {
		return nil, err
	}

	dpi := scaledDPI(bounds.Dx(), bounds.Dy(), float64(r.cfg.DPI), r.cfg.MaxDimension)

	var img *image.RGBA
	for attempt := 0; attempt < renderAttempts; attempt++ {
		img, err = doc.ImageDPI(page, dpi)
		if err != nil {
			return nil, err
		}
		largest := maxSide(img.Bounds())
		if r.cfg.MaxDimension <= 0 || largest <= r.cfg.MaxDimension {
			return img, nil
		}
		// Page bounds are integral points, so the first estimate can overshoot by a pixel.
		dpi = dpi * float64(r.cfg.MaxDimension) / float64(largest)
	}
	return img, nil
}

// scaledDPI returns the DPI at which a page of the given size in points has
// its larger side no bigger than maxDim pixels.
func scaledDPI(widthPt, heightPt int, dpi float64, maxDim int) float64 {
	largestPt := widthPt
	if heightPt > largestPt {
		largestPt = heightPt
	}
	if maxDim <= 0 || largestPt <= 0 {
		return dpi
	}
	if float64(largestPt)*dpi/72 > float64(maxDim) {
		return float64(maxDim) * 72 / float64(largestPt)
	}
	return dpi
}

func maxSide(b image.Rectangle) int {
	if b.Dx() > b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
