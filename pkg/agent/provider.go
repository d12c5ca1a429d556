package agent

import (
	"context"
	"fmt"
)

// Backend is the uniform call contract every model provider satisfies: a
// model id plus the ordered transcript in, one text reply out.
type Backend interface {
	// Complete returns the reply text for the transcript.
	Complete(ctx context.Context, model string, messages []Message) (string, error)

	// Kind returns the backend kind this provider serves.
	Kind() BackendKind
}

// Credentials carries API keys and endpoint overrides per backend kind.
type Credentials struct {
	OpenAIKey       string
	OpenAIBaseURL   string
	ClaudeKey       string
	ClaudeMaxTokens int
	GeminiKey       string
	DeepSeekKey     string
	DeepSeekBaseURL string
}

// DefaultDeepSeekBaseURL is the OpenAI-compatible DeepSeek endpoint.
const DefaultDeepSeekBaseURL = "https://api.deepseek.com"

// BackendCreator creates backends for a backend kind.
type BackendCreator interface {
	NewBackend(kind BackendKind) (Backend, error)
}

// ProviderFactory creates SDK-backed providers from credentials.
type ProviderFactory struct {
	Credentials Credentials
}

// NewProviderFactory returns a factory bound to creds.
func NewProviderFactory(creds Credentials) *ProviderFactory {
	return &ProviderFactory{Credentials: creds}
}

// NewBackend creates a new provider for kind.
func (f *ProviderFactory) NewBackend(kind BackendKind) (Backend, error) {
	c := f.Credentials
	switch kind {
	case KindOpenAI:
		return NewOpenAIProvider(c.OpenAIKey, c.OpenAIBaseURL), nil
	case KindDeepSeek:
		baseURL := c.DeepSeekBaseURL
		if baseURL == "" {
			baseURL = DefaultDeepSeekBaseURL
		}
		p := NewOpenAIProvider(c.DeepSeekKey, baseURL)
		p.kind = KindDeepSeek
		return p, nil
	case KindClaude:
		return NewAnthropicProvider(c.ClaudeKey, c.ClaudeMaxTokens), nil
	case KindGemini:
		return NewGeminiProvider(context.Background(), c.GeminiKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc struct {
	BackendKind BackendKind
	Fn          func(ctx context.Context, model string, messages []Message) (string, error)
}

// Complete calls Fn.
func (b BackendFunc) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	return b.Fn(ctx, model, messages)
}

// Kind returns BackendKind.
func (b BackendFunc) Kind() BackendKind { return b.BackendKind }
