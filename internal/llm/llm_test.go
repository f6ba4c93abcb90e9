package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/domain"
)

func TestNew(t *testing.T) {
	gen, err := New(config.LLMConfig{Type: "extractive"}, config.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "extractive", gen.Name())

	gen, err = New(config.LLMConfig{Type: "openai", Model: "gpt-4o-mini"}, config.Credentials{LLMAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", gen.Model())

	_, err = New(config.LLMConfig{Type: "openai"}, config.Credentials{})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)

	_, err = New(config.LLMConfig{Type: "claude-local"}, config.Credentials{})
	assert.Error(t, err)
}
