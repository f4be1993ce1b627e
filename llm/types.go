// Package llm implements the LLM Adapter: a uniform invoke/stream contract
// over the basic, reasoning, and vision model classes, with schema-validated
// structured invocation for callers that need JSON-shaped output.
package llm

import (
	"context"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/prompt"
)

// Delta is one incremental unit of a streamed response. Exactly one of
// Content or ReasoningContent is set per delta.
type Delta struct {
	Content          string
	ReasoningContent string
}

// Message is a complete, non-streamed model response.
type Message struct {
	Content          string
	ReasoningContent string
}

// DeltaFunc is invoked once per streamed delta. Returning an error stops the
// stream early and the error is propagated to the Stream caller.
type DeltaFunc func(Delta) error

// Backend is the seam between the Adapter's policy/retry logic and a
// concrete provider SDK binding. basic and reasoning classes are served by
// the Anthropic backend, vision by the OpenAI backend.
type Backend interface {
	Invoke(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage) (Message, error)
	Stream(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage, onDelta DeltaFunc) error
}

// SelectClass implements the Workflow Engine's model-class selection policy:
// reasoning when deep-thinking is requested, vision when the caller is the
// browser worker, basic otherwise.
func SelectClass(worker agent.Worker, deepThinking bool) agent.ModelClass {
	if worker == agent.Browser {
		return agent.ModelClassVision
	}
	if deepThinking {
		return agent.ModelClassReasoning
	}
	return agent.ModelClassBasic
}
