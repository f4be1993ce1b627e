package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	invopopschema "github.com/invopop/jsonschema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/events"
	"github.com/medassist-ai/core/internal/plan"
	"github.com/medassist-ai/core/llm"
	"github.com/medassist-ai/core/prompt"
	"github.com/medassist-ai/core/state"
	"github.com/medassist-ai/core/tools"
)

// handoffMarker is the literal token the coordinator's prompt asks it to
// emit when a turn needs the full planning pipeline rather than a direct
// reply.
const handoffMarker = "handoff_to_planner"

func (e *Engine) coordinatorNode(ctx context.Context, st *state.WorkflowState, sink Sink) (state.NodeCommand, error) {
	messages, err := e.prompts.Bind(agent.Coordinator, st)
	if err != nil {
		return state.NodeCommand{}, err
	}

	sink(events.NewStartOfLLM(string(agent.Coordinator)))
	msg, err := e.invoke(ctx, agent.ModelClassBasic, messages)
	sink(events.NewEndOfLLM(string(agent.Coordinator)))
	if err != nil {
		return state.NodeCommand{}, err
	}
	sink(events.NewMessage(string(agent.Coordinator), events.MessageDelta{Content: msg.Content}))

	if !strings.Contains(msg.Content, handoffMarker) {
		return textPatch(state.Terminal, state.RoleAssistant, strings.TrimSpace(msg.Content)), nil
	}

	if st.HasWorker(string(agent.Translator)) && containsNonASCII(lastUserMessage(st)) {
		return routeOnly(string(agent.Translator)), nil
	}
	return routeOnly(string(agent.Planner)), nil
}

func (e *Engine) plannerNode(ctx context.Context, workflowID, agentID string, st *state.WorkflowState, sink Sink) (state.NodeCommand, error) {
	// start_of_workflow is emitted here, at planner entry, rather than at
	// orchestrator startup: a direct-reply turn that never reaches planner
	// never sees a workflow envelope at all.
	sink(events.NewStartOfWorkflow(workflowID, lastUserMessage(st)))

	if st.SearchBeforePlanning {
		// Search-before-planning is a best-effort enrichment: a failing
		// search tool must not fail the run, only fall back to the base
		// prompt.
		if err := e.enrichWithSearch(ctx, st); err != nil {
			slog.Warn("search-before-planning failed, continuing without it", "error", err)
		}
	}

	messages, err := e.prompts.Bind(agent.Planner, st)
	if err != nil {
		return state.NodeCommand{}, err
	}

	class := llm.SelectClass(agent.Planner, st.DeepThinking)
	var content strings.Builder
	sink(events.NewStartOfLLM(string(agent.Planner)))
	err = e.llm.Stream(ctx, class, messages, func(d llm.Delta) error {
		content.WriteString(d.Content)
		sink(events.NewMessage(agentID, events.MessageDelta{Content: d.Content, ReasoningContent: d.ReasoningContent}))
		return nil
	})
	sink(events.NewEndOfLLM(string(agent.Planner)))
	if err != nil {
		return state.NodeCommand{}, err
	}

	parsed, err := plan.Parse(content.String())
	if err != nil {
		return state.NodeCommand{}, fmt.Errorf("planner produced an unparseable plan: %w", err)
	}
	if st.Debug {
		if raw, err := json.Marshal(parsed); err == nil {
			slog.Debug("planner produced plan", "workflow_id", workflowID, "plan", string(raw))
		}
	}
	return planPatch(string(agent.Supervisor), parsed), nil
}

// enrichWithSearch runs a single web-search call keyed off the user's
// original turn and folds the result into the running message history so
// the planner's prompt sees it.
func (e *Engine) enrichWithSearch(ctx context.Context, st *state.WorkflowState) error {
	query := lastUserMessage(st)
	if query == "" {
		return nil
	}
	result, err := e.tools.Invoke(ctx, "web-search", map[string]any{"query": query}, nil)
	if err != nil {
		return err
	}
	st.Messages = append(st.Messages, state.Message{
		Role:    state.RoleSystem,
		Type:    state.MessageTypeText,
		Content: "Preliminary search results:\n" + result.Content,
	})
	return nil
}

type supervisorOutput struct {
	Next string `json:"next" jsonschema:"required"`
}

var supervisorSchema *jsonschema.Schema

func init() {
	reflector := &invopopschema.Reflector{ExpandedStruct: true}
	raw, err := json.Marshal(reflector.Reflect(&supervisorOutput{}))
	if err != nil {
		panic(fmt.Sprintf("workflow: reflecting supervisor schema: %v", err))
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("workflow: unmarshaling supervisor schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("supervisor.json", doc); err != nil {
		panic(fmt.Sprintf("workflow: adding supervisor schema resource: %v", err))
	}
	supervisorSchema, err = compiler.Compile("supervisor.json")
	if err != nil {
		panic(fmt.Sprintf("workflow: compiling supervisor schema: %v", err))
	}
}

func (e *Engine) supervisorNode(ctx context.Context, st *state.WorkflowState, sink Sink) (state.NodeCommand, error) {
	messages, err := e.prompts.Bind(agent.Supervisor, st)
	if err != nil {
		return state.NodeCommand{}, err
	}

	sink(events.NewStartOfLLM(string(agent.Supervisor)))
	raw, err := e.llm.Structured(ctx, agent.ModelClassBasic, messages, supervisorSchema)
	sink(events.NewEndOfLLM(string(agent.Supervisor)))
	if err != nil {
		return state.NodeCommand{}, err
	}
	if st.Debug {
		slog.Debug("supervisor structured output", "raw", string(raw))
	}

	var decision supervisorOutput
	if err := json.Unmarshal(raw, &decision); err != nil {
		return state.NodeCommand{}, fmt.Errorf("supervisor: decoding structured output: %w", err)
	}

	if decision.Next == state.Terminal {
		return routeOnly(string(agent.Reporter)), nil
	}
	if decision.Next == string(agent.Supervisor) || decision.Next == string(agent.Coordinator) || decision.Next == string(agent.Planner) || decision.Next == string(agent.Reporter) {
		return state.NodeCommand{}, fmt.Errorf("supervisor: %q is not a dispatchable worker", decision.Next)
	}
	if !st.HasWorker(decision.Next) {
		return state.NodeCommand{}, fmt.Errorf("supervisor: %q is not in the team roster", decision.Next)
	}
	return routeOnly(decision.Next), nil
}

// reactWorkerNode drives the generic react-style loop shared by researcher,
// coder, browser, translator, and reporter: call the LLM, check the response
// for an embedded tool call, invoke it and feed the observation back, and
// repeat until the LLM answers without requesting a tool.
func (e *Engine) reactWorkerNode(ctx context.Context, workflowID string, worker agent.Worker, agentID string, st *state.WorkflowState, sink Sink) (state.NodeCommand, error) {
	messages, err := e.prompts.Bind(worker, st)
	if err != nil {
		return state.NodeCommand{}, err
	}

	class := llm.SelectClass(worker, st.DeepThinking)
	toolCallCounter := 0

	for iteration := 0; iteration < maxWorkerIterations; iteration++ {
		var content strings.Builder
		sink(events.NewStartOfLLM(string(worker)))
		err := e.llm.Stream(ctx, class, messages, func(d llm.Delta) error {
			content.WriteString(d.Content)
			sink(events.NewMessage(agentID, events.MessageDelta{Content: d.Content, ReasoningContent: d.ReasoningContent}))
			return nil
		})
		sink(events.NewEndOfLLM(string(worker)))
		if err != nil {
			return state.NodeCommand{}, err
		}

		call, rest, ok := extractToolCall(content.String())
		if !ok {
			return finalWorkerCommand(worker, strings.TrimSpace(content.String())), nil
		}

		toolCallID := events.ToolCallID(workflowID, string(worker), call.Name, toolCallCounter)
		toolCallCounter++
		sink(events.NewToolCall(toolCallID, call.Name, call.Arguments))

		result, invokeErr := e.tools.Invoke(ctx, call.Name, call.Arguments, func(tools.ProgressEvent) {})
		observation := result.Content
		if invokeErr != nil {
			observation = invokeErr.Error()
			if e.metrics != nil {
				e.metrics.ToolErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", call.Name)))
			}
		}
		sink(events.NewToolCallResult(toolCallID, call.Name, observation))

		messages = append(messages, prompt.ChatMessage{Role: "assistant", Content: rest})
		messages = append(messages, prompt.ChatMessage{Role: "tool", Content: fmt.Sprintf("[%s result]\n%s", call.Name, observation)})
	}

	return finalWorkerCommand(worker, "reached the worker's iteration limit without a conclusive answer"), nil
}

func finalWorkerCommand(worker agent.Worker, content string) state.NodeCommand {
	if worker == agent.Reporter {
		return textPatch(state.Terminal, state.RoleAssistant, content)
	}
	return textPatch(string(agent.Supervisor), state.RoleAssistant, content)
}

func containsNonASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}
