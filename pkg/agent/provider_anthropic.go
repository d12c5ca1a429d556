package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultClaudeMaxTokens caps Claude replies when no limit is configured.
const DefaultClaudeMaxTokens = 1024

// AnthropicProvider implements Backend for Anthropic Claude
type AnthropicProvider struct {
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey string, maxTokens int) *AnthropicProvider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if maxTokens <= 0 {
		maxTokens = DefaultClaudeMaxTokens
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		maxTokens: int64(maxTokens),
	}
}

// Kind returns the backend kind
func (p *AnthropicProvider) Kind() BackendKind {
	return KindClaude
}

// Complete makes a Messages API call. System entries are lifted into the
// request's system prompt.
func (p *AnthropicProvider) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	var system []string
	params := []anthropic.MessageParam{}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  params,
		MaxTokens: p.maxTokens,
	}
	if len(system) > 0 {
		reqParams.System = []anthropic.TextBlockParam{
			{Text: strings.Join(system, "\n\n")},
		}
	}

	response, err := p.client.Messages.New(ctx, reqParams)
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(b.Text)
		}
	}
	if content.Len() == 0 {
		return "", fmt.Errorf("no text content returned")
	}

	return content.String(), nil
}
