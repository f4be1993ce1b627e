package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/config"
	"github.com/medassist-ai/core/prompt"
)

// defaultThinkingBudget is the extended-thinking token budget requested for
// the reasoning class absent any per-call override.
const defaultThinkingBudget = int64(10000)

const defaultMaxTokens = int64(4096)

// AnthropicBackend serves the basic and reasoning model classes via the
// Anthropic Messages API, with extended thinking enabled for reasoning.
type AnthropicBackend struct {
	client anthropic.Client
	model  map[agent.ModelClass]string
}

// NewAnthropicBackend builds a Backend bound to the basic and reasoning
// classes. cfgs maps each class to its configured model/API-key/base-URL.
// One client serves both classes: it is built from the basic entry's API key
// and base URL, and the reasoning entry contributes only its model name.
func NewAnthropicBackend(cfgs map[agent.ModelClass]config.LLMClassConfig) (*AnthropicBackend, error) {
	basic, ok := cfgs[agent.ModelClassBasic]
	if !ok {
		return nil, fmt.Errorf("llm: anthropic backend requires a basic class config")
	}

	opts := []option.RequestOption{option.WithAPIKey(basic.APIKey)}
	if strings.TrimSpace(basic.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(basic.BaseURL))
	}

	models := make(map[agent.ModelClass]string, len(cfgs))
	for class, c := range cfgs {
		models[class] = c.Model
	}

	return &AnthropicBackend{
		client: anthropic.NewClient(opts...),
		model:  models,
	}, nil
}

func (b *AnthropicBackend) modelFor(class agent.ModelClass) string {
	if m, ok := b.model[class]; ok && m != "" {
		return m
	}
	return "claude-sonnet-4-20250514"
}

func (b *AnthropicBackend) buildParams(class agent.ModelClass, messages []prompt.ChatMessage) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var msgs []anthropic.MessageParam

	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
			continue
		}
		if m.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.modelFor(class)),
		Messages:  msgs,
		MaxTokens: defaultMaxTokens,
		System:    system,
	}

	if class == agent.ModelClassReasoning {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(defaultThinkingBudget)
	}

	return params
}

// Invoke performs a non-streaming call, retrying transient failures with
// exponential backoff.
func (b *AnthropicBackend) Invoke(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage) (Message, error) {
	params := b.buildParams(class, messages)

	var result Message
	op := func() error {
		resp, err := b.client.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		result = messageFromBlocks(resp.Content)
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return Message{}, fmt.Errorf("llm: anthropic invoke: %w", err)
	}
	return result, nil
}

func messageFromBlocks(blocks []anthropic.ContentBlockUnion) Message {
	var msg Message
	for _, block := range blocks {
		switch block.Type {
		case "text":
			msg.Content += block.Text
		case "thinking":
			msg.ReasoningContent += block.Thinking
		}
	}
	return msg
}

// Stream performs a streaming call, delivering one Delta per content delta
// event.
func (b *AnthropicBackend) Stream(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage, onDelta DeltaFunc) error {
	params := b.buildParams(class, messages)
	stream := b.client.Messages.NewStreaming(ctx, params)

	for stream.Next() {
		event := stream.Current()
		if event.Type != "content_block_delta" {
			continue
		}
		delta := event.AsContentBlockDelta().Delta
		switch delta.Type {
		case "text_delta":
			if delta.Text != "" {
				if err := onDelta(Delta{Content: delta.Text}); err != nil {
					return err
				}
			}
		case "thinking_delta":
			if delta.Thinking != "" {
				if err := onDelta(Delta{ReasoningContent: delta.Thinking}); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("llm: anthropic stream: %w", err)
	}
	return nil
}
