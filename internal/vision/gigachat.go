package vision

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"hisabkitab/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errUnauthorized = errors.New("gigachat: unauthorized")

// GigaChat uploads the page through the Files API and references it as an
// attachment in a chat completion.
type GigaChat struct {
	cfg        config.GigaChatConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewGigaChat(cfg config.GigaChatConfig, timeout time.Duration, logger *zap.Logger) *GigaChat {
	httpClient := &http.Client{Timeout: timeout}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	return &GigaChat{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (g *GigaChat) ExtractTransactions(ctx context.Context, imagePath string) (string, error) {
	img, err := readImage(imagePath)
	if err != nil {
		return "", err
	}

	text, err := g.extract(ctx, img)
	if errors.Is(err, errUnauthorized) {
		// Tokens live for about half an hour; retry once with a fresh one.
		g.invalidateToken()
		text, err = g.extract(ctx, img)
	}
	return text, err
}

func (g *GigaChat) extract(ctx context.Context, img pageImage) (string, error) {
	token, err := g.token(ctx)
	if err != nil {
		return "", err
	}

	fileID, err := g.upload(ctx, token, img)
	if err != nil {
		return "", err
	}

	return g.complete(ctx, token, fileID)
}

func (g *GigaChat) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.expiresAt) {
		return g.accessToken, nil
	}

	form := url.Values{}
	form.Set("scope", g.cfg.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.OAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create OAuth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.New().String())
	// The key is issued already base64-encoded.
	req.Header.Set("Authorization", "Basic "+g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OAuth failed with status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 500))
	}

	var oauthResp struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oauthResp); err != nil {
		return "", fmt.Errorf("failed to decode OAuth response: %w", err)
	}
	if oauthResp.AccessToken == "" {
		return "", errors.New("empty access token in OAuth response")
	}

	g.accessToken = oauthResp.AccessToken
	g.expiresAt = time.Now().Add(25 * time.Minute)
	if oauthResp.ExpiresAt > 0 {
		g.expiresAt = time.UnixMilli(oauthResp.ExpiresAt).Add(-time.Minute)
	}
	return g.accessToken, nil
}

func (g *GigaChat) invalidateToken() {
	g.mu.Lock()
	g.accessToken = ""
	g.mu.Unlock()
}

func (g *GigaChat) upload(ctx context.Context, token string, img pageImage) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("purpose", "general"); err != nil {
		return "", fmt.Errorf("failed to write purpose field: %w", err)
	}
	part, err := writer.CreatePart(map[string][]string{
		"Content-Type":        {img.mimeType},
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="%s"`, img.name)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(img.data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/files", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", errUnauthorized
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 500))
	}

	var uploadResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	return uploadResp.ID, nil
}

func (g *GigaChat) complete(ctx context.Context, token, fileID string) (string, error) {
	requestBody := map[string]interface{}{
		"model": g.cfg.Model,
		"messages": []map[string]interface{}{
			{
				"role":        "user",
				"content":     ExtractionPrompt,
				"attachments": []string{fileID},
			},
		},
		"temperature": openAITemperature,
		"stream":      false,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 500))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "[]", nil
	}
	return out.Choices[0].Message.Content, nil
}
