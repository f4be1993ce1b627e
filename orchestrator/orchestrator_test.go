package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/events"
	"github.com/medassist-ai/core/llm"
	"github.com/medassist-ai/core/prompt"
	"github.com/medassist-ai/core/session"
	"github.com/medassist-ai/core/tools"
	"github.com/medassist-ai/core/workflow"
)

type fakeBackend struct {
	queues map[string][]string
}

func newFakeBackend() *fakeBackend { return &fakeBackend{queues: map[string][]string{}} }

func (b *fakeBackend) enqueue(worker, response string) {
	b.queues[worker] = append(b.queues[worker], response)
}

func workerFromMessages(messages []prompt.ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	sys := messages[0].Content
	for _, w := range []string{"coordinator", "planner", "supervisor", "researcher", "coder", "browser", "reporter", "translator"} {
		if strings.Contains(sys, "You are the "+w) {
			return w
		}
	}
	return ""
}

func (b *fakeBackend) pop(worker string) string {
	q := b.queues[worker]
	if len(q) == 0 {
		return ""
	}
	resp := q[0]
	b.queues[worker] = q[1:]
	return resp
}

func (b *fakeBackend) Invoke(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage) (llm.Message, error) {
	return llm.Message{Content: b.pop(workerFromMessages(messages))}, nil
}

func (b *fakeBackend) Stream(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage, onDelta llm.DeltaFunc) error {
	return onDelta(llm.Delta{Content: b.pop(workerFromMessages(messages))})
}

func newTestOrchestrator(t *testing.T, backend *fakeBackend) (*Orchestrator, *session.Store) {
	t.Helper()
	store, err := session.New(context.Background(), "sqlite://file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := agent.NewRegistry()
	binder := prompt.New(registry)
	adapter := llm.NewAdapter(map[agent.ModelClass]llm.Backend{
		agent.ModelClassBasic:     backend,
		agent.ModelClassReasoning: backend,
		agent.ModelClassVision:    backend,
	})
	engine := workflow.New(registry, binder, adapter, tools.NewRegistry())
	orch := New(store, engine, registry, time.Minute, nil)
	return orch, store
}

func fullRosterDirectReply() []string {
	return []string{
		string(agent.Coordinator), string(agent.Planner), string(agent.Supervisor), string(agent.Reporter),
	}
}

func TestRunTurnCreatesSessionAndPersistsDirectReply(t *testing.T) {
	backend := newFakeBackend()
	backend.enqueue("coordinator", "Ibuprofen is an NSAID used for pain relief.")

	orch, store := newTestOrchestrator(t, backend)

	var collected []events.Envelope
	sink := func(e events.Envelope) { collected = append(collected, e) }

	req := TurnRequest{UserID: "user-1", Input: "What is ibuprofen?", TeamRoster: fullRosterDirectReply()}
	require.NoError(t, orch.RunTurn(context.Background(), req, sink))

	require.NotEmpty(t, collected)
	assert.Equal(t, events.TypeSessionID, collected[0].Type)
	last := collected[len(collected)-1]
	assert.Equal(t, events.TypeEndOfWorkflow, last.Type)

	sessionID := collected[0].Data.(events.SessionIDData).SessionID
	messages, err := store.ListMessages(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1].Content, "NSAID")

	got, err := store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.NotNil(t, got.State)
}

func TestRunTurnUnknownSessionReturnsErrUnknownSession(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newFakeBackend())
	req := TurnRequest{SessionID: "ghost", Input: "hello", TeamRoster: fullRosterDirectReply()}
	err := orch.RunTurn(context.Background(), req, func(events.Envelope) {})
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestRunTurnInvalidRosterReturnsError(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newFakeBackend())
	req := TurnRequest{Input: "hello", TeamRoster: nil}
	err := orch.RunTurn(context.Background(), req, func(events.Envelope) {})
	require.Error(t, err)
}

func TestRunTurnFoldsEngineFailureIntoAssistantMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.enqueue("coordinator", "handoff_to_planner")
	backend.enqueue("planner", "not valid json")

	orch, store := newTestOrchestrator(t, backend)

	var collected []events.Envelope
	sink := func(e events.Envelope) { collected = append(collected, e) }

	req := TurnRequest{Input: "hello", TeamRoster: fullRosterDirectReply()}
	require.NoError(t, orch.RunTurn(context.Background(), req, sink))

	sessionID := collected[0].Data.(events.SessionIDData).SessionID
	messages, err := store.ListMessages(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1].Content, "problem")

	last := collected[len(collected)-1]
	assert.Equal(t, events.TypeEndOfWorkflow, last.Type)
}
