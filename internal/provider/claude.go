package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phuslu/log"

	"github.com/robertluwang/DocChatbot/internal/config"
	"github.com/robertluwang/DocChatbot/internal/domain"
)

const defaultClaudeModel = "claude-sonnet-4-20250514"

// ClaudeGenerator generates chat completions via the Anthropic API. It
// accepts role-tagged multi-message input.
type ClaudeGenerator struct {
	client      anthropic.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      log.Logger
}

func NewClaudeGenerator(cfg config.LLMConfig, logger log.Logger) (*ClaudeGenerator, error) {
	apiKey, err := readKeyFile(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	logger.Debug().Str("model", model).Msg("claude generator initialized")
	return &ClaudeGenerator{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeoutOrDefault(cfg.TimeoutSecs, 120*time.Second),
		logger:      logger,
	}, nil
}

func (g *ClaudeGenerator) Name() string       { return "claude/" + g.model }
func (g *ClaudeGenerator) SupportsChat() bool { return true }

func (g *ClaudeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.Chat(ctx, []domain.Message{{Role: "user", Content: prompt}})
}

func (g *ClaudeGenerator) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(g.maxTokens),
		Messages:  claudeMessages,
	}
	if g.temperature > 0 {
		params.Temperature = anthropic.Float(float64(g.temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response generated")
	}
	return out.String(), nil
}

// convertMessagesToClaude maps role-tagged messages to Anthropic MessageParam
// values, extracting the first system message for the System parameter.
func convertMessagesToClaude(messages []domain.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}
	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if systemText == "" {
				systemText = msg.Content
			}
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(claudeMessages) == 0 {
		return nil, "", fmt.Errorf("at least one non-system message is required")
	}
	return claudeMessages, systemText, nil
}
