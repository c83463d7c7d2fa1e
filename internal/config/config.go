// Package config loads runtime configuration from a YAML file with
// environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config stores the full runtime configuration.
type Config struct {
	Database string       `yaml:"database"`
	OpenAI   OpenAIConfig `yaml:"openai"`
	Anki     AnkiConfig   `yaml:"anki"`
	Enrich   EnrichConfig `yaml:"enrich"`
}

// OpenAIConfig configures the chat-completion provider.
type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
	// Timeout is the per-call bound in seconds.
	Timeout int `yaml:"timeout"`
}

// AnkiConfig configures the AnkiConnect target and note identity.
type AnkiConfig struct {
	URL       string   `yaml:"url"`
	DeckName  string   `yaml:"deck_name"`
	ModelName string   `yaml:"model_name"`
	Tags      []string `yaml:"tags"`
	// Timeout is the HTTP client bound in seconds.
	Timeout int `yaml:"timeout"`
	// RecoveryFile receives failed pushes; empty means a generated
	// name in the working directory.
	RecoveryFile string `yaml:"recovery_file"`
}

// EnrichConfig bounds a single enrichment run.
type EnrichConfig struct {
	// Limit caps successful enrichments per run; 0 means unbounded.
	Limit int `yaml:"limit"`
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Database, validation.Required),
	); err != nil {
		return err
	}
	if err := c.OpenAI.Validate(); err != nil {
		return err
	}
	return c.Anki.Validate()
}

func (c *OpenAIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Timeout, validation.Min(0)),
	)
}

func (c *AnkiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.DeckName, validation.Required),
		validation.Field(&c.ModelName, validation.Required),
		validation.Field(&c.Timeout, validation.Min(0)),
	)
}

// NewDefault returns a Config with sensible default values.
func NewDefault() *Config {
	return &Config{
		Database: "./data/examdeck.db",
		OpenAI: OpenAIConfig{
			APIKey:   os.Getenv("OPENAI_API_KEY"),
			Model:    "gpt-4o-mini",
			Endpoint: "https://api.openai.com/v1",
			Timeout:  120,
		},
		Anki: AnkiConfig{
			URL:       "http://127.0.0.1:8765",
			DeckName:  "ExamDeck",
			ModelName: "Basic",
			Tags:      []string{"examdeck"},
			Timeout:   30,
		},
		Enrich: EnrichConfig{Limit: 0},
	}
}

// Load reads the YAML file at path into cfg, expanding ${VAR} references
// from the environment, then validates the result. A missing file leaves
// the defaults untouched.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg.Validate()
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return fmt.Errorf("ensure database dir: %w", err)
	}
	return nil
}
