// Package vision sends page images to a vision-capable language model and
// returns its raw answer.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"hisabkitab/pkg/config"

	"go.uber.org/zap"
)

const (
	BackendOllama   = "ollama"
	BackendLMStudio = "lmstudio"
	BackendOpenAI   = "openai"
	BackendGemini   = "gemini"
	BackendGigaChat = "gigachat"
)

// ExtractionPrompt is sent with every page image.
const ExtractionPrompt = `You are a financial document parser. Extract every transaction visible on this bank statement page.

Return a JSON array where each element has exactly these keys:
- "date": transaction date in YYYY-MM-DD format
- "description": the full transaction description as printed
- "merchant": the merchant or counterparty name, cleaned up
- "amount": the transaction amount as a positive number
- "txn_type": "debit" for money going out, "credit" for money coming in
- "balance": the running balance after the transaction, or null if not shown
- "currency": the three letter currency code, e.g. "USD"
- "category": one of Groceries, Dining, Transport, Shopping, Bills & Utilities, Entertainment, Health, Travel, Education, Income, Transfer, Other

Rules:
- Return ONLY the JSON array, no markdown fences and no explanations.
- If the page has no transactions, return [].
- Do not invent transactions that are not on the page.
- Use "Other" when no category fits.`

// Adapter turns one page image into the model's raw text answer. The text is
// returned as-is; callers are expected to normalize it.
type Adapter interface {
	ExtractTransactions(ctx context.Context, imagePath string) (string, error)
}

// New builds the adapter selected by cfg.Backend.
func New(ctx context.Context, cfg config.VisionConfig, logger *zap.Logger) (Adapter, error) {
	logger = logger.With(zap.String("backend", cfg.Backend))

	switch cfg.Backend {
	case BackendOllama:
		return NewOllama(cfg.Ollama, httpClient(cfg), logger), nil
	case BackendLMStudio, BackendOpenAI:
		return NewOpenAICompatible(cfg.LMStudio, httpClient(cfg), logger), nil
	case BackendGemini:
		return NewGemini(ctx, cfg.Gemini, httpClient(cfg), logger)
	case BackendGigaChat:
		return NewGigaChat(cfg.GigaChat, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown vision backend %q", cfg.Backend)
	}
}

func httpClient(cfg config.VisionConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

type pageImage struct {
	name     string
	mimeType string
	data     []byte
}

func (i pageImage) base64() string {
	return base64.StdEncoding.EncodeToString(i.data)
}

func (i pageImage) dataURL() string {
	return "data:" + i.mimeType + ";base64," + i.base64()
}

func readImage(path string) (pageImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pageImage{}, fmt.Errorf("failed to read image: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		switch ext {
		case ".png":
			mimeType = "image/png"
		default:
			mimeType = "image/jpeg"
		}
	}
	// TypeByExtension may append parameters such as charset.
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	return pageImage{name: filepath.Base(path), mimeType: mimeType, data: data}, nil
}

// truncate bounds error bodies included in messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
