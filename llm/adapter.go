package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/prompt"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Adapter dispatches invoke/stream calls to the Backend registered for the
// requested model class.
type Adapter struct {
	backends map[agent.ModelClass]Backend
}

// NewAdapter builds an Adapter. basic and reasoning normally share the same
// Anthropic-backed Backend; vision is served by a distinct OpenAI-backed one.
func NewAdapter(backends map[agent.ModelClass]Backend) *Adapter {
	return &Adapter{backends: backends}
}

func (a *Adapter) backendFor(class agent.ModelClass) (Backend, error) {
	b, ok := a.backends[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBackendForClass, class)
	}
	return b, nil
}

// Invoke performs a single synchronous-result call.
func (a *Adapter) Invoke(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage) (Message, error) {
	b, err := a.backendFor(class)
	if err != nil {
		return Message{}, err
	}
	return b.Invoke(ctx, class, messages)
}

// Stream performs a token-streaming call, invoking onDelta for each delta in
// order.
func (a *Adapter) Stream(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage, onDelta DeltaFunc) error {
	b, err := a.backendFor(class)
	if err != nil {
		return err
	}
	return b.Stream(ctx, class, messages, onDelta)
}

// Structured performs a JSON-coerced invocation: the model's output is
// validated against schema. On the first failure the adapter attempts the
// narrow JSON-repair pass, and failing that retries the whole invocation
// once; a second failure surfaces ErrSchemaViolation.
func (a *Adapter) Structured(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage, schema *jsonschema.Schema) (json.RawMessage, error) {
	raw, ok, err := a.tryStructuredOnce(ctx, class, messages, schema)
	if err != nil {
		return nil, err
	}
	if ok {
		return raw, nil
	}

	raw, ok, err = a.tryStructuredOnce(ctx, class, messages, schema)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSchemaViolation
	}
	return raw, nil
}

func (a *Adapter) tryStructuredOnce(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage, schema *jsonschema.Schema) (json.RawMessage, bool, error) {
	msg, err := a.Invoke(ctx, class, messages)
	if err != nil {
		return nil, false, err
	}

	if raw, ok := validate(msg.Content, schema); ok {
		return raw, true, nil
	}

	if repaired, ok := repairJSON(msg.Content); ok {
		if raw, ok := validate(repaired, schema); ok {
			return raw, true, nil
		}
	}

	return nil, false, nil
}

func validate(content string, schema *jsonschema.Schema) (json.RawMessage, bool) {
	var instance any
	if err := json.Unmarshal([]byte(content), &instance); err != nil {
		return nil, false
	}
	if err := schema.Validate(instance); err != nil {
		return nil, false
	}
	return json.RawMessage(bytes.TrimSpace([]byte(content))), true
}
