package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects and configures the generation provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	// KeyFile is the path to a local file holding the cloud API key. It is
	// read once at provider construction; a missing file is a hard failure.
	KeyFile string `yaml:"key_file"`
	// BaseURL applies to the local (ollama) provider only.
	BaseURL string `yaml:"base_url,omitempty"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	KeyFile     string `yaml:"key_file"`
	BaseURL     string `yaml:"base_url,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks. Sizes are in
// characters (runes).
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// IndexConfig configures the on-disk index store.
type IndexConfig struct {
	Root string `yaml:"root"`
	TopK int    `yaml:"top_k"`
}

// ChatLogConfig configures where session logs are written.
type ChatLogConfig struct {
	Dir string `yaml:"dir"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Index     IndexConfig     `yaml:"index"`
	ChatLog   ChatLogConfig   `yaml:"chat_log"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docchatbot/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docchatbot", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		LLM:       LLMConfig{Provider: "gemini"},
		Embedding: EmbeddingConfig{Provider: "gemini"},
		Chunker:   ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Index:     IndexConfig{Root: "indexes", TopK: 4},
		ChatLog:   ChatLogConfig{Dir: "chat_logs"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.LLM.KeyFile == "" {
		cfg.LLM.KeyFile = ".google_api_key"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 8192
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = cfg.LLM.Provider
		// Claude has no embeddings API; pair it with Gemini embeddings.
		if cfg.Embedding.Provider == "claude" {
			cfg.Embedding.Provider = "gemini"
		}
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.KeyFile == "" {
		cfg.Embedding.KeyFile = cfg.LLM.KeyFile
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 768
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.Index.Root == "" {
		cfg.Index.Root = "indexes"
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 4
	}
	if cfg.ChatLog.Dir == "" {
		cfg.ChatLog.Dir = "chat_logs"
	}
}
