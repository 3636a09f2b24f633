package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"hisabkitab/pkg/config"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Gemini sends the page inline to the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGemini(ctx context.Context, cfg config.GeminiConfig, httpClient *http.Client, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{client: client, model: cfg.Model, logger: logger}, nil
}

func (g *Gemini) ExtractTransactions(ctx context.Context, imagePath string) (string, error) {
	img, err := readImage(imagePath)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: ExtractionPrompt},
			{InlineData: &genai.Blob{MIMEType: img.mimeType, Data: img.data}},
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	g.logger.Debug("Page extracted",
		zap.String("image", img.name),
		zap.Int("response_length", len(text)),
	)
	return text, nil
}
