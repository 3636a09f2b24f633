package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hisabkitab/pkg/config"

	"go.uber.org/zap"
)

// Ollama talks to the /api/generate endpoint of an Ollama server.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewOllama(cfg config.EndpointConfig, httpClient *http.Client, logger *zap.Logger) *Ollama {
	return &Ollama{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger,
	}
}

type ollamaRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) ExtractTransactions(ctx context.Context, imagePath string) (string, error) {
	img, err := readImage(imagePath)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: ExtractionPrompt,
		Images: []string{img.base64()},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 500))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}

	o.logger.Debug("Page extracted",
		zap.String("image", img.name),
		zap.Int("response_length", len(out.Response)),
	)
	return out.Response, nil
}
