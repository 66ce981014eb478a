// Package config holds the unified veritas configuration: YAML file on
// disk, defaults in code, environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all veritas configuration.
type Config struct {
	// LLM provider settings
	LLM LLMConfig `yaml:"llm"`

	// Quote extraction settings
	Extraction ExtractionConfig `yaml:"extraction"`

	// Idea synthesis settings
	Ideas IdeasConfig `yaml:"ideas"`

	// Paper generation settings
	Paper PaperConfig `yaml:"paper"`

	// File locations
	Paths PathsConfig `yaml:"paths"`

	// HTTP gateway
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// MinCallInterval is the global pacing floor between call starts.
	MinCallInterval string `yaml:"min_call_interval"`
}

// ExtractionConfig bounds quote extraction.
type ExtractionConfig struct {
	MaxQuotesPerDoc int  `yaml:"max_quotes_per_doc"`
	CharsPerChunk   int  `yaml:"chars_per_chunk"`
	Concurrency     int  `yaml:"concurrency"`     // chunk calls within one document
	DocConcurrency  int  `yaml:"doc_concurrency"` // documents in flight
	NoDedupe        bool `yaml:"no_dedupe"`
}

// IdeasConfig bounds idea synthesis.
type IdeasConfig struct {
	Enabled     bool `yaml:"enabled"`
	Concurrency int  `yaml:"concurrency"`
}

// PaperConfig bounds paper generation and the grade/revise loop.
type PaperConfig struct {
	Topic       string `yaml:"topic"`
	MinWords    int    `yaml:"min_words"`
	MaxWords    int    `yaml:"max_words"`
	MaxIters    int    `yaml:"max_iters"`
	Concurrency int    `yaml:"concurrency"` // citation calls in flight
}

// PathsConfig configures where inputs and artifacts live.
type PathsConfig struct {
	PapersDir string `yaml:"papers_dir"`
	OutDir    string `yaml:"out_dir"`
	CacheDir  string `yaml:"cache_dir"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini",
			BaseURL:         "https://api.openai.com/v1",
			Timeout:         "60s",
			MinCallInterval: "100ms",
		},
		Extraction: ExtractionConfig{
			MaxQuotesPerDoc: 15,
			CharsPerChunk:   10_000,
			Concurrency:     3,
			DocConcurrency:  3,
		},
		Ideas: IdeasConfig{
			Enabled:     true,
			Concurrency: 20,
		},
		Paper: PaperConfig{
			Topic:       "",
			MinWords:    1400,
			MaxWords:    2400,
			MaxIters:    4,
			Concurrency: 4,
		},
		Paths: PathsConfig{
			PapersDir: "./papers",
			OutDir:    "./out",
			CacheDir:  "./.cache",
		},
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Keys are
// checked in priority order; the last match wins.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if key := os.Getenv("VERITAS_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("VERITAS_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if addr := os.Getenv("VERITAS_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// CallTimeout parses the LLM timeout, falling back to a minute.
func (c *Config) CallTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// PacingInterval parses the global pacing floor, zero when unset.
func (c *Config) PacingInterval() time.Duration {
	d, err := time.ParseDuration(c.LLM.MinCallInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
