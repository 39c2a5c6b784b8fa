package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// KnowledgeConfig locates the knowledge-base text file and controls reloads.
type KnowledgeConfig struct {
	Path        string `yaml:"path"`
	RefreshSecs int    `yaml:"refresh_secs"`
	Watch       bool   `yaml:"watch"`
}

// CacheConfig sizes the analysis cache.
type CacheConfig struct {
	TTLSecs  int `yaml:"ttl_secs"`
	Capacity int `yaml:"capacity"`
}

// RetrievalConfig tunes knowledge retrieval.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LLMConfig configures the Mistral chat-completions client.
type LLMConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	TopP              float64 `yaml:"top_p"`
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Debug bool   `yaml:"debug"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// LexiconConfig optionally points at a lexicon file replacing the embedded one.
type LexiconConfig struct {
	Path string `yaml:"path"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Cache     CacheConfig     `yaml:"cache"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Lexicon   LexiconConfig   `yaml:"lexicon"`
}

// RefreshInterval is the knowledge-base rebuild period.
func (c KnowledgeConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSecs) * time.Second
}

// TTL is the lifetime of a cached analysis.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSecs) * time.Second }

// Timeout is the per-request HTTP timeout.
func (c LLMConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// Load parses the YAML file at path. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault looks for config.yaml in the working directory, then in
// ~/.config/fapassist. When neither exists the defaults are written to the user
// path so the next run picks them up.
func LoadDefault() (*AppConfig, string, error) {
	userPath, err := userConfigPath()
	if err != nil {
		return nil, "", err
	}
	for _, p := range []string{"config.yaml", userPath} {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func userConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home dir: %w", err)
	}
	return filepath.Join(home, ".config", "fapassist", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{Knowledge: KnowledgeConfig{Watch: true}}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Knowledge.Path == "" {
		cfg.Knowledge.Path = "data/data.txt"
	}
	if cfg.Knowledge.RefreshSecs == 0 {
		cfg.Knowledge.RefreshSecs = 300
	}
	if cfg.Cache.TTLSecs == 0 {
		cfg.Cache.TTLSecs = 300
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 1000
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.mistral.ai/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "MISTRAL_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistral-medium-latest"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.TopP == 0 {
		cfg.LLM.TopP = 0.7
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 150
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 30
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.RequestsPerSecond == 0 {
		cfg.LLM.RequestsPerSecond = 5
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
