package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phuslu/log"

	"github.com/robertluwang/DocChatbot/internal/config"
	"github.com/robertluwang/DocChatbot/internal/domain"
)

// Default configuration for the local Ollama provider.
const (
	defaultOllamaBaseURL    = "http://localhost:11434"
	defaultOllamaEmbedModel = "nomic-embed-text"
	defaultOllamaChatModel  = "llama3.1:8b"
)

// OllamaEmbedder generates embeddings against a local Ollama server.
type OllamaEmbedder struct {
	client    *http.Client
	baseURL   string
	model     string
	dimension int
	logger    log.Logger
}

func NewOllamaEmbedder(cfg config.EmbeddingConfig, logger log.Logger) *OllamaEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaEmbedModel
	}
	logger.Debug().Str("base_url", baseURL).Str("model", model).Msg("ollama embedder initialized")
	return &OllamaEmbedder{
		client:    &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		baseURL:   baseURL,
		model:     model,
		dimension: cfg.Dimension,
		logger:    logger,
	}
}

func (e *OllamaEmbedder) Name() string {
	return fmt.Sprintf("ollama/%s/%d", e.model, e.dimension)
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{Model: e.model, Prompt: text}

	var respBody struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := e.post(ctx, "/api/embeddings", reqBody, &respBody); err != nil {
		return nil, err
	}
	if len(respBody.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	if len(respBody.Embedding) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(respBody.Embedding))
	}
	return respBody.Embedding, nil
}

func (e *OllamaEmbedder) post(ctx context.Context, path string, in, out any) error {
	return ollamaPost(ctx, e.client, e.baseURL+path, in, out)
}

// OllamaGenerator generates completions against a local Ollama server. It
// accepts flat text only.
type OllamaGenerator struct {
	client      *http.Client
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	logger      log.Logger
}

func NewOllamaGenerator(cfg config.LLMConfig, logger log.Logger) *OllamaGenerator {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaChatModel
	}
	logger.Debug().Str("base_url", baseURL).Str("model", model).Msg("ollama generator initialized")
	return &OllamaGenerator{
		client:      &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		baseURL:     baseURL,
		model:       model,
		temperature: float64(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

func (g *OllamaGenerator) Name() string       { return "ollama/" + g.model }
func (g *OllamaGenerator) SupportsChat() bool { return false }

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := struct {
		Model   string `json:"model"`
		Prompt  string `json:"prompt"`
		Stream  bool   `json:"stream"`
		Options struct {
			NumPredict  int     `json:"num_predict,omitempty"`
			Temperature float64 `json:"temperature,omitempty"`
		} `json:"options"`
	}{Model: g.model, Prompt: prompt, Stream: false}
	reqBody.Options.NumPredict = g.maxTokens
	reqBody.Options.Temperature = g.temperature

	var respBody struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := ollamaPost(ctx, g.client, g.baseURL+"/api/generate", reqBody, &respBody); err != nil {
		return "", err
	}
	if respBody.Response == "" {
		return "", fmt.Errorf("no response generated")
	}
	return respBody.Response, nil
}

// Chat degrades to flat-text generation; callers should check SupportsChat
// and assemble a flat prompt instead.
func (g *OllamaGenerator) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	var sb bytes.Buffer
	for _, msg := range messages {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(msg.Content)
	}
	return g.Generate(ctx, sb.String())
}

func ollamaPost(ctx context.Context, client *http.Client, url string, in, out any) error {
	jsonBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
