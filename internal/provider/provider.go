// Package provider assembles embedding and generation providers behind the
// domain interfaces. Providers are selected by name; the closed set is
// "gemini" and "ollama" for embeddings, plus "claude" for generation.
package provider

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/robertluwang/DocChatbot/internal/config"
	"github.com/robertluwang/DocChatbot/internal/domain"
)

// NewEmbedder constructs the embedding provider named in cfg.
func NewEmbedder(cfg config.EmbeddingConfig, logger log.Logger) (domain.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return NewGeminiEmbedder(cfg, logger)
	case "ollama":
		return NewOllamaEmbedder(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewGenerator constructs the generation provider named in cfg.
func NewGenerator(cfg config.LLMConfig, logger log.Logger) (domain.Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return NewGeminiGenerator(cfg, logger)
	case "ollama":
		return NewOllamaGenerator(cfg, logger), nil
	case "claude":
		return NewClaudeGenerator(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: generation provider %q", domain.ErrUnsupportedProvider, cfg.Provider)
	}
}

// timeoutOrDefault converts configured seconds to a duration, falling back
// when the value is not positive. A zero-duration context deadline would fail
// every call instantly.
func timeoutOrDefault(secs int, fallback time.Duration) time.Duration {
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// readKeyFile reads an API key from a local file. A missing or empty key file
// is a hard startup failure for cloud providers.
func readKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("API key file %s: %w", path, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("API key file %s is empty", path)
	}
	return key, nil
}
