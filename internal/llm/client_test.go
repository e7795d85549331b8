package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestUserTurn(t *testing.T) {
	msgs := UserTurn("hello")
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestAnthropicComplete(t *testing.T) {
	var gotSystem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotSystem = req.System
		assert.Equal(t, 4096, req.MaxTokens)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "  the answer  "}},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-sonnet-4-5",
		Timeout: 5 * time.Second,
	})
	out, err := c.Complete(context.Background(), "be terse", UserTurn("question"))
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
	assert.Equal(t, "be terse", gotSystem)
}

func TestAnthropicCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := c.Complete(context.Background(), "", UserTurn("q"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestAnthropicCompleteMissingKey(t *testing.T) {
	c := NewAnthropicClient(AnthropicConfig{BaseURL: "http://unreachable.invalid"})
	_, err := c.Complete(context.Background(), "", UserTurn("q"))
	assert.Error(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// System prompt travels as the first wire message.
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, "system", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o", Timeout: 5 * time.Second})
	out, err := c.Complete(context.Background(), "sys", UserTurn("q"))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestAzureClientWiring(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", r.URL.Path)
		assert.Equal(t, "2025-01-01-preview", r.URL.Query().Get("api-version"))
		assert.Equal(t, "az-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := NewAzureClient(srv.URL, "az-key", "gpt-4o", 5*time.Second)
	out, err := c.Complete(context.Background(), "", UserTurn("q"))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestGeminiRoleMapping(t *testing.T) {
	assert.Equal(t, genai.Role(genai.RoleUser), geminiRole(RoleUser))
	assert.Equal(t, genai.Role(genai.RoleModel), geminiRole(RoleAssistant))
	assert.Equal(t, genai.Role(genai.RoleUser), geminiRole("system"))
}

func TestNewClientFromConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClientFromConfig(ctx, ProviderConfig{Provider: ProviderAnthropic})
	assert.Error(t, err)

	_, err = NewClientFromConfig(ctx, ProviderConfig{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = NewClientFromConfig(ctx, ProviderConfig{Provider: ProviderAzure, APIKey: "k"})
	assert.Error(t, err)

	_, err = NewClientFromConfig(ctx, ProviderConfig{Provider: "smoke-signals"})
	assert.Error(t, err)

	c, err := NewClientFromConfig(ctx, ProviderConfig{Provider: ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	c, err = NewClientFromConfig(ctx, ProviderConfig{Provider: ProviderAzure, APIKey: "k", AzureEndpoint: "https://x.openai.azure.com"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)
}
