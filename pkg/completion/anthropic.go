package completion

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/amirel/converse/pkg/transcript"
)

const defaultMaxTokens = 4096

// AnthropicCompleter implements Completer for Anthropic Claude.
type AnthropicCompleter struct {
	client anthropic.Client
}

// NewAnthropicCompleter creates a new Anthropic completer.
func NewAnthropicCompleter(apiKey string) *AnthropicCompleter {
	return &AnthropicCompleter{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Provider returns the provider name.
func (c *AnthropicCompleter) Provider() string {
	return "anthropic"
}

// Complete sends the context window to Anthropic and returns the assistant text.
func (c *AnthropicCompleter) Complete(ctx context.Context, turns []transcript.Turn, opts Options) (string, error) {
	messages := []anthropic.MessageParam{}

	for _, turn := range turns {
		switch turn.Role {
		case transcript.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(turn.Content),
			))
		case transcript.RoleAssistant:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(turn.Content),
				},
			})
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: opts.SystemPrompt},
		}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	response, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", unavailable(c.Provider(), err)
	}

	content := ""
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += b.Text
		}
	}

	return content, nil
}
