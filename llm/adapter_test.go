package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/prompt"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	invokeResponses []Message
	invokeCalls     int
	invokeErr       error
}

func (f *fakeBackend) Invoke(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage) (Message, error) {
	if f.invokeErr != nil {
		return Message{}, f.invokeErr
	}
	idx := f.invokeCalls
	if idx >= len(f.invokeResponses) {
		idx = len(f.invokeResponses) - 1
	}
	f.invokeCalls++
	return f.invokeResponses[idx], nil
}

func (f *fakeBackend) Stream(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage, onDelta DeltaFunc) error {
	for _, r := range f.invokeResponses {
		if err := onDelta(Delta{Content: r.Content}); err != nil {
			return err
		}
	}
	return nil
}

func compileSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(`{
		"type": "object",
		"properties": {"next": {"type": "string"}},
		"required": ["next"]
	}`))
	require.NoError(t, err)
	require.NoError(t, c.AddResource("schema.json", doc))
	schema, err := c.Compile("schema.json")
	require.NoError(t, err)
	return schema
}

func TestSelectClass(t *testing.T) {
	assert.Equal(t, agent.ModelClassVision, SelectClass(agent.Browser, false))
	assert.Equal(t, agent.ModelClassVision, SelectClass(agent.Browser, true))
	assert.Equal(t, agent.ModelClassReasoning, SelectClass(agent.Planner, true))
	assert.Equal(t, agent.ModelClassBasic, SelectClass(agent.Planner, false))
}

func TestInvokeDispatchesToRegisteredBackend(t *testing.T) {
	fb := &fakeBackend{invokeResponses: []Message{{Content: "hello"}}}
	a := NewAdapter(map[agent.ModelClass]Backend{agent.ModelClassBasic: fb})

	msg, err := a.Invoke(context.Background(), agent.ModelClassBasic, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
}

func TestInvokeUnregisteredClassErrors(t *testing.T) {
	a := NewAdapter(map[agent.ModelClass]Backend{})
	_, err := a.Invoke(context.Background(), agent.ModelClassVision, nil)
	assert.ErrorIs(t, err, ErrNoBackendForClass)
}

func TestStructuredSucceedsOnFirstValidResponse(t *testing.T) {
	schema := compileSchema(t)
	fb := &fakeBackend{invokeResponses: []Message{{Content: `{"next": "reporter"}`}}}
	a := NewAdapter(map[agent.ModelClass]Backend{agent.ModelClassBasic: fb})

	raw, err := a.Structured(context.Background(), agent.ModelClassBasic, nil, schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"next": "reporter"}`, string(raw))
	assert.Equal(t, 1, fb.invokeCalls)
}

func TestStructuredRepairsFencedJSON(t *testing.T) {
	schema := compileSchema(t)
	fb := &fakeBackend{invokeResponses: []Message{{Content: "```json\n{\"next\": \"reporter\"}\n```"}}}
	a := NewAdapter(map[agent.ModelClass]Backend{agent.ModelClassBasic: fb})

	raw, err := a.Structured(context.Background(), agent.ModelClassBasic, nil, schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"next": "reporter"}`, string(raw))
	assert.Equal(t, 1, fb.invokeCalls)
}

func TestStructuredRetriesOnceThenFails(t *testing.T) {
	schema := compileSchema(t)
	fb := &fakeBackend{invokeResponses: []Message{{Content: "not json at all"}, {Content: "still not json"}}}
	a := NewAdapter(map[agent.ModelClass]Backend{agent.ModelClassBasic: fb})

	_, err := a.Structured(context.Background(), agent.ModelClassBasic, nil, schema)
	assert.ErrorIs(t, err, ErrSchemaViolation)
	assert.Equal(t, 2, fb.invokeCalls)
}

func TestStructuredRetriesOnceThenSucceeds(t *testing.T) {
	schema := compileSchema(t)
	fb := &fakeBackend{invokeResponses: []Message{{Content: "not json"}, {Content: `{"next": "FINISH"}`}}}
	a := NewAdapter(map[agent.ModelClass]Backend{agent.ModelClassBasic: fb})

	raw, err := a.Structured(context.Background(), agent.ModelClassBasic, nil, schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"next": "FINISH"}`, string(raw))
	assert.Equal(t, 2, fb.invokeCalls)
}
