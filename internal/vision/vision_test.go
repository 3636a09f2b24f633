package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"hisabkitab/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fakeJPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 'p', 'a', 'g', 'e', 0xff, 0xd9}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page_1.jpg")
	require.NoError(t, os.WriteFile(path, fakeJPEG, 0o644))
	return path
}

func TestOllamaSendsPromptAndImage(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": `[{"amount": 1}]`, "done": true})
	}))
	defer srv.Close()

	adapter := NewOllama(config.EndpointConfig{BaseURL: srv.URL + "/", Model: "llava"}, srv.Client(), zap.NewNop())

	text, err := adapter.ExtractTransactions(context.Background(), writeImage(t))
	require.NoError(t, err)

	assert.Equal(t, `[{"amount": 1}]`, text)
	assert.Equal(t, "llava", got.Model)
	assert.Equal(t, ExtractionPrompt, got.Prompt)
	assert.False(t, got.Stream)
	require.Len(t, got.Images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(fakeJPEG), got.Images[0])
}

func TestOllamaNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	adapter := NewOllama(config.EndpointConfig{BaseURL: srv.URL, Model: "missing"}, srv.Client(), zap.NewNop())

	_, err := adapter.ExtractTransactions(context.Background(), writeImage(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenAICompatibleRequestShape(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices": [{"message": {"role": "assistant", "content": "[]"}}]}`)
	}))
	defer srv.Close()

	adapter := NewOpenAICompatible(config.EndpointConfig{BaseURL: srv.URL, Model: "local-model"}, srv.Client(), zap.NewNop())

	text, err := adapter.ExtractTransactions(context.Background(), writeImage(t))
	require.NoError(t, err)
	assert.Equal(t, "[]", text)

	assert.Equal(t, "local-model", got.Model)
	assert.Equal(t, openAIMaxTokens, got.MaxTokens)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, ExtractionPrompt, got.Messages[0].Content[0].Text)
	require.NotNil(t, got.Messages[0].Content[1].ImageURL)
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(fakeJPEG), got.Messages[0].Content[1].ImageURL.URL)
}

func TestOpenAICompatibleNoChoicesMeansEmptyArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices": []}`)
	}))
	defer srv.Close()

	adapter := NewOpenAICompatible(config.EndpointConfig{BaseURL: srv.URL}, srv.Client(), zap.NewNop())

	text, err := adapter.ExtractTransactions(context.Background(), writeImage(t))
	require.NoError(t, err)
	assert.Equal(t, "[]", text)
}

func TestAdapterTimeoutIsError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := &http.Client{Timeout: 50 * time.Millisecond}
	adapter := NewOpenAICompatible(config.EndpointConfig{BaseURL: srv.URL}, client, zap.NewNop())

	_, err := adapter.ExtractTransactions(context.Background(), writeImage(t))
	require.Error(t, err)
}

func TestMissingImageIsError(t *testing.T) {
	adapter := NewOllama(config.EndpointConfig{BaseURL: "http://127.0.0.1:1"}, http.DefaultClient, zap.NewNop())

	_, err := adapter.ExtractTransactions(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
}

func TestGigaChatFlow(t *testing.T) {
	var oauthCalls, uploadCalls atomic.Int32
	var rejectOnce atomic.Bool
	rejectOnce.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		oauthCalls.Add(1)
		assert.Equal(t, "Basic key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("RqUID"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "GIGACHAT_API_PERS", r.PostForm.Get("scope"))
		_, _ = io.WriteString(w, `{"access_token": "tok", "expires_at": 0}`)
	})
	mux.HandleFunc("/api/v1/files", func(w http.ResponseWriter, r *http.Request) {
		uploadCalls.Add(1)
		if rejectOnce.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "general", r.FormValue("purpose"))
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, fakeJPEG, data)
		_, _ = io.WriteString(w, `{"id": "file-123"}`)
	})
	mux.HandleFunc("/api/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, strings.Contains(string(body), `"attachments":["file-123"]`))
		_, _ = io.WriteString(w, `{"choices": [{"message": {"content": "[{\"amount\": 3}]"}}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	adapter := NewGigaChat(config.GigaChatConfig{
		APIKey:   "key",
		Scope:    "GIGACHAT_API_PERS",
		OAuthURL: srv.URL + "/oauth",
		BaseURL:  srv.URL + "/api/v1",
		Model:    "GigaChat-Pro",
	}, 5*time.Second, zap.NewNop())

	text, err := adapter.ExtractTransactions(context.Background(), writeImage(t))
	require.NoError(t, err)
	assert.Equal(t, `[{"amount": 3}]`, text)
	assert.Equal(t, int32(2), oauthCalls.Load())
	assert.Equal(t, int32(2), uploadCalls.Load())
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.VisionConfig{Timeout: time.Second}

	cfg.Backend = BackendOllama
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, a)

	cfg.Backend = BackendLMStudio
	a, err = New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAICompatible{}, a)

	cfg.Backend = BackendGigaChat
	a, err = New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &GigaChat{}, a)

	cfg.Backend = BackendGemini
	_, err = New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err, "gemini requires an API key")

	cfg.Backend = "tesseract"
	_, err = New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
