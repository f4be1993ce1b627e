package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/config"
	"github.com/medassist-ai/core/prompt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend serves the vision model class via OpenAI's chat completions
// API, used by the browser worker to interpret page screenshots.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

// NewOpenAIBackend builds a Backend bound to the vision class.
func NewOpenAIBackend(cfg config.LLMClassConfig) (*OpenAIBackend, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	return &OpenAIBackend{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (b *OpenAIBackend) buildParams(messages []prompt.ChatMessage) openai.ChatCompletionNewParams {
	var msgs []openai.ChatCompletionMessageParamUnion
	for _, m := range messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Model:    b.model,
		Messages: msgs,
	}
}

// Invoke performs a non-streaming call.
func (b *OpenAIBackend) Invoke(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage) (Message, error) {
	params := b.buildParams(messages)

	var result Message
	op := func() error {
		resp, err := b.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("llm: openai returned no choices")
		}
		result = Message{Content: resp.Choices[0].Message.Content}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return Message{}, fmt.Errorf("llm: openai invoke: %w", err)
	}
	return result, nil
}

// Stream performs a streaming call, delivering one Delta per content chunk.
func (b *OpenAIBackend) Stream(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage, onDelta DeltaFunc) error {
	params := b.buildParams(messages)
	stream := b.client.Chat.Completions.NewStreaming(ctx, params)

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if err := onDelta(Delta{Content: content}); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("llm: openai stream: %w", err)
	}
	return nil
}
