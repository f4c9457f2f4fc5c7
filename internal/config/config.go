// Package config handles loading and persisting user configuration
// for gramo. Configuration is stored in ~/.gramo/config.json and can be
// overridden by environment variables or a .env file in the working
// directory.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	dirName  = ".gramo"
	fileName = "config.json"

	defaultModel       = "gpt-4o-mini"
	defaultProvider    = "openai"
	defaultTemperature = 0.3
	defaultMaxTokens   = 2000

	// MaxTemperature is the highest sampling temperature sent to a model.
	MaxTemperature = 0.5

	envKeyAPIKey       = "GRAMO_API_KEY"
	envKeyOpenAIAPIKey = "OPENAI_API_KEY"
	envKeyModel        = "GRAMO_MODEL"
	envKeyProvider     = "GRAMO_PROVIDER"
	envKeyBaseURL      = "GRAMO_BASE_URL"
)

// Config holds the user's configuration.
type Config struct {
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model"`
	Provider    string  `json:"provider"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func configPath() string {
	return filepath.Join(Dir(), fileName)
}

func defaults() *Config {
	return &Config{
		Model:       defaultModel,
		Provider:    defaultProvider,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
}

// readFile loads the config file over the defaults. A missing file is
// not an error. Fields absent from the file keep their defaults, so an
// explicit temperature of 0 survives.
func readFile() (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(configPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration from disk and environment variables.
// Variables from ./.env are applied first without overriding the
// process environment. A missing API key is not an error here; it is
// reported when a request is made.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := readFile()
	if err != nil {
		return nil, err
	}

	if key := firstEnv(envKeyAPIKey, envKeyOpenAIAPIKey); key != "" {
		cfg.APIKey = key
	}
	if model := os.Getenv(envKeyModel); model != "" {
		cfg.Model = model
	}
	if provider := os.Getenv(envKeyProvider); provider != "" {
		cfg.Provider = provider
	}
	if baseURL := os.Getenv(envKeyBaseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	cfg.Temperature = ClampTemperature(cfg.Temperature)
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return cfg, nil
}

// ClampTemperature bounds t to [0, MaxTemperature].
func ClampTemperature(t float64) float64 {
	return min(max(t, 0), MaxTemperature)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// save persists the config to disk.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath(), data, 0o600)
}

// update applies fn to the stored config and writes it back. Environment
// overrides are not persisted.
func update(fn func(*Config)) error {
	cfg, err := readFile()
	if err != nil {
		return err
	}
	fn(cfg)
	return save(cfg)
}

// SetAPIKey saves the API key to the config file.
func SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key must not be empty")
	}
	return update(func(c *Config) { c.APIKey = key })
}

// RemoveAPIKey deletes the stored API key.
func RemoveAPIKey() error {
	return update(func(c *Config) { c.APIKey = "" })
}

// SetModel saves the model preference to the config file.
func SetModel(model string) error {
	return update(func(c *Config) { c.Model = model })
}

// SetProvider saves the provider name. Validation is left to the caller.
func SetProvider(provider string) error {
	return update(func(c *Config) { c.Provider = strings.ToLower(strings.TrimSpace(provider)) })
}

// SetBaseURL saves an endpoint override. An empty value restores the
// provider default.
func SetBaseURL(baseURL string) error {
	return update(func(c *Config) { c.BaseURL = strings.TrimSpace(baseURL) })
}

// MaskKey returns key with all but its first and last four characters
// hidden.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
