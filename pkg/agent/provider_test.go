package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderFactory(t *testing.T) {
	factory := NewProviderFactory(Credentials{
		OpenAIKey:   "sk-test",
		ClaudeKey:   "sk-ant-test",
		GeminiKey:   "gm-test",
		DeepSeekKey: "ds-test",
	})

	t.Run("should create a provider per kind", func(t *testing.T) {
		for _, kind := range Kinds() {
			backend, err := factory.NewBackend(kind)
			require.NoError(t, err, kind)
			assert.Equal(t, kind, backend.Kind())
		}
	})

	t.Run("should serve DeepSeek through the OpenAI client", func(t *testing.T) {
		backend, err := factory.NewBackend(KindDeepSeek)
		require.NoError(t, err)
		_, ok := backend.(*OpenAIProvider)
		assert.True(t, ok)
	})

	t.Run("should reject unknown kinds", func(t *testing.T) {
		_, err := factory.NewBackend("MISTRAL")
		assert.ErrorIs(t, err, ErrUnknownKind)
	})
}

func TestAnthropicMaxTokens(t *testing.T) {
	p := NewAnthropicProvider("k", 0)
	assert.Equal(t, int64(DefaultClaudeMaxTokens), p.maxTokens)

	p = NewAnthropicProvider("k", 256)
	assert.Equal(t, int64(256), p.maxTokens)
}

func TestToOpenAIMessages(t *testing.T) {
	msgs := toOpenAIMessages([]Message{
		{Role: RoleSystem, Content: "ctx"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
}
