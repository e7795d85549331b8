// Package config resolves service configuration from the environment and
// an optional YAML file. Configuration errors (missing credential,
// unsupported provider) are fatal at load time.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fcvanalyst/internal/llm"
)

// Config is the full service configuration.
type Config struct {
	Provider      string `yaml:"provider" json:"provider"`
	Model         string `yaml:"model" json:"model"`
	APIKey        string `yaml:"api_key" json:"api_key"`
	AzureEndpoint string `yaml:"azure_endpoint" json:"azure_endpoint"`

	// DataPath is the default event dataset loaded into the "default"
	// session at startup, when the file exists.
	DataPath string `yaml:"data_path" json:"data_path"`

	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	Debug      bool   `yaml:"debug" json:"debug"`

	// Data360BaseURL overrides the indicator API endpoint, mainly for tests.
	Data360BaseURL string `yaml:"data360_base_url" json:"data360_base_url"`
}

// Load resolves configuration: optional YAML file, then environment
// overrides. A .env file in the working directory is loaded best-effort
// first so keys are available regardless of how the process was started.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Provider:   "anthropic",
		ListenAddr: ":8000",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
		cfg.AzureEndpoint = v
	}
	if v := os.Getenv("ACLED_DEFAULT_PATH"); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}
	if cfg.APIKey == "" {
		cfg.APIKey = keyForProvider(cfg.Provider)
	}
}

func keyForProvider(provider string) string {
	switch llm.Provider(provider) {
	case llm.ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case llm.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case llm.ProviderAzure:
		return os.Getenv("AZURE_OPENAI_API_KEY")
	case llm.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// Validate checks the provider selection and its credentials.
func (c *Config) Validate() error {
	switch llm.Provider(c.Provider) {
	case llm.ProviderAnthropic, llm.ProviderOpenAI, llm.ProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("provider %q requires an API key; set it in the environment", c.Provider)
		}
	case llm.ProviderAzure:
		if c.AzureEndpoint == "" {
			return fmt.Errorf("provider azure requires AZURE_OPENAI_ENDPOINT")
		}
	default:
		return fmt.Errorf("unsupported provider %q (valid: anthropic, openai, azure, gemini)", c.Provider)
	}
	return nil
}

// ProviderConfig converts the service config to the llm factory input.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:      llm.Provider(c.Provider),
		APIKey:        c.APIKey,
		Model:         c.Model,
		AzureEndpoint: c.AzureEndpoint,
		Timeout:       120 * time.Second,
	}
}
