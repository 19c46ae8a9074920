package generation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/clarirag/internal/apperr"
)

func TestRegistry_Names(t *testing.T) {
	assert.Equal(t, []string{"anthropic", "gemini", "ollama", "openai"}, NewRegistry().Names())
}

func TestRegistry_UnknownProvider(t *testing.T) {
	_, err := NewRegistry().Build(Config{Provider: "palm"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnknownCapability))
}

func TestRegistry_BuildWithoutNetwork(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Provider: ProviderAnthropic, APIKey: "k"}, "anthropic/" + defaultAnthropicModel},
		{Config{Provider: ProviderOpenAI, APIKey: "k", Model: "gpt-4o"}, "openai/gpt-4o"},
		{Config{Provider: ProviderOllama, BaseURL: "http://127.0.0.1:1"}, "ollama/llama3.2"},
	}
	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.cfg.Provider, func(t *testing.T) {
			g, err := r.Build(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Model())
		})
	}
}

func TestMissingKeys(t *testing.T) {
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(env, "")
	}
	r := NewRegistry()
	for _, p := range []string{ProviderGemini, ProviderAnthropic, ProviderOpenAI} {
		_, err := r.Build(Config{Provider: p})
		assert.Error(t, err, p)
	}
}

func TestConfigMaxTokens(t *testing.T) {
	assert.Equal(t, DefaultMaxTokens, Config{}.maxTokens())
	assert.Equal(t, 100, Config{MaxTokens: 100}.maxTokens())
}
