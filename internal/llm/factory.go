package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider identifies a text-completion backend.
type Provider string

// Supported providers.
const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderAzure     Provider = "azure"
	ProviderGemini    Provider = "gemini"
)

// ProviderConfig holds the resolved provider selection. The factory is the
// only place that dispatches on the provider tag.
type ProviderConfig struct {
	Provider      Provider
	APIKey        string
	Model         string
	AzureEndpoint string
	Timeout       time.Duration
}

// NewClientFromConfig builds the Client variant for the configured provider.
// Missing credentials are a fatal configuration error, reported immediately.
func NewClientFromConfig(ctx context.Context, cfg ProviderConfig) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key is required; set ANTHROPIC_API_KEY")
		}
		c := DefaultAnthropicConfig(cfg.APIKey)
		c.Timeout = cfg.Timeout
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		return NewAnthropicClient(c), nil

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required; set OPENAI_API_KEY")
		}
		c := DefaultOpenAIConfig(cfg.APIKey)
		c.Timeout = cfg.Timeout
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		return NewOpenAIClient(c), nil

	case ProviderAzure:
		if cfg.AzureEndpoint == "" {
			return nil, fmt.Errorf("Azure endpoint is required; set AZURE_OPENAI_ENDPOINT")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o"
		}
		return NewAzureClient(cfg.AzureEndpoint, cfg.APIKey, model, cfg.Timeout), nil

	case ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)

	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: anthropic, openai, azure, gemini)", cfg.Provider)
	}
}
