package completion

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/amirel/converse/pkg/transcript"
)

// OpenAICompleter implements Completer for OpenAI chat completions.
type OpenAICompleter struct {
	client openai.Client
}

// NewOpenAICompleter creates a new OpenAI completer.
func NewOpenAICompleter(apiKey string) *OpenAICompleter {
	return &OpenAICompleter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Provider returns the provider name.
func (c *OpenAICompleter) Provider() string {
	return "openai"
}

// Complete sends the context window to OpenAI and returns the assistant text.
func (c *OpenAICompleter) Complete(ctx context.Context, turns []transcript.Turn, opts Options) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(opts.SystemPrompt))
	}

	for _, turn := range turns {
		switch turn.Role {
		case transcript.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case transcript.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: messages,
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}

	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	response, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", unavailable(c.Provider(), err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	return response.Choices[0].Message.Content, nil
}
