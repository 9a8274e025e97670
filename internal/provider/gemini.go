package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"google.golang.org/genai"

	"github.com/robertluwang/DocChatbot/internal/config"
	"github.com/robertluwang/DocChatbot/internal/domain"
)

// Default Gemini model names.
const (
	defaultGeminiEmbedModel = "gemini-embedding-001"
	defaultGeminiChatModel  = "gemini-1.5-pro"
)

// GeminiEmbedder generates embeddings via the Gemini API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
	timeout   time.Duration
	logger    log.Logger
}

// NewGeminiEmbedder creates a Gemini embedding provider. The API key is read
// from the configured key file; a missing key is a hard failure.
func NewGeminiEmbedder(cfg config.EmbeddingConfig, logger log.Logger) (*GeminiEmbedder, error) {
	apiKey, err := readKeyFile(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiEmbedModel
	}
	logger.Debug().Str("model", model).Int("dimension", cfg.Dimension).Msg("gemini embedder initialized")
	return &GeminiEmbedder{
		client:    client,
		model:     model,
		dimension: cfg.Dimension,
		timeout:   timeoutOrDefault(cfg.TimeoutSecs, 30*time.Second),
		logger:    logger,
	}, nil
}

func (e *GeminiEmbedder) Name() string {
	return fmt.Sprintf("gemini/%s/%d", e.model, e.dimension)
}

func (e *GeminiEmbedder) Dimension() int { return e.dimension }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	outputDim := int32(e.dimension)
	result, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: &outputDim})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	vec := result.Embeddings[0].Values
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(vec))
	}
	return vec, nil
}

// GeminiGenerator generates chat completions via the Gemini API. It accepts
// role-tagged multi-message input.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      log.Logger
}

func NewGeminiGenerator(cfg config.LLMConfig, logger log.Logger) (*GeminiGenerator, error) {
	apiKey, err := readKeyFile(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiChatModel
	}
	logger.Debug().Str("model", model).Msg("gemini generator initialized")
	return &GeminiGenerator{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		timeout:     timeoutOrDefault(cfg.TimeoutSecs, 120*time.Second),
		logger:      logger,
	}, nil
}

func (g *GeminiGenerator) Name() string       { return "gemini/" + g.model }
func (g *GeminiGenerator) SupportsChat() bool { return true }

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.Chat(ctx, []domain.Message{{Role: "user", Content: prompt}})
}

func (g *GeminiGenerator) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if systemText != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response generated")
	}
	return out.String(), nil
}

// convertMessagesToGemini maps role-tagged messages to Gemini Content values,
// extracting the first system message for use as the system instruction.
func convertMessagesToGemini(messages []domain.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}
	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}
		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}
	if len(contents) == 0 {
		return nil, "", fmt.Errorf("at least one non-system message is required")
	}
	return contents, systemText, nil
}
