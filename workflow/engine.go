// Package workflow implements the Workflow Engine: the state-graph
// interpreter that drives a run, node by node, from the coordinator through
// to the terminal sentinel.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/events"
	"github.com/medassist-ai/core/internal/plan"
	"github.com/medassist-ai/core/llm"
	"github.com/medassist-ai/core/observability"
	"github.com/medassist-ai/core/prompt"
	"github.com/medassist-ai/core/state"
	"github.com/medassist-ai/core/tools"
)

// maxWorkerIterations bounds a single react-style worker's internal
// call-tool-observe loop so a misbehaving model can't spin forever.
const maxWorkerIterations = 8

// Sink receives every event the engine produces while driving a run. The
// Request Orchestrator supplies one backed by the Event Projector and Stream
// Transport; tests can supply one that just appends to a slice.
type Sink func(events.Envelope)

// Engine drives one workflow run: repeatedly resolving the current node,
// executing it, applying its patch, and following its Goto until the
// terminal sentinel, an unrecoverable error, or context cancellation.
type Engine struct {
	agents  *agent.Registry
	prompts *prompt.Binder
	llm     *llm.Adapter
	tools   *tools.Registry
	// metrics is nil-safe: a nil Engine.metrics simply records nothing, so
	// every existing New() call site stays valid without an extra argument.
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// New builds an Engine from its four collaborators.
func New(agents *agent.Registry, prompts *prompt.Binder, adapter *llm.Adapter, toolRegistry *tools.Registry) *Engine {
	return &Engine{agents: agents, prompts: prompts, llm: adapter, tools: toolRegistry, tracer: observability.Tracer("workflow")}
}

// SetMetrics attaches the instruments the engine records node durations and
// tool errors against. Safe to call once during wiring; nil disables
// recording.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
}

// Run drives st from agent.Coordinator to state.Terminal, mutating st in
// place and emitting events to sink as it goes. It returns the first
// unrecoverable error (a planner parse failure, an invalid supervisor
// routing decision, an LLM error) or nil on clean termination. A failed tool
// invocation is not returned: its error text becomes the worker's
// observation.
func (e *Engine) Run(ctx context.Context, workflowID string, st *state.WorkflowState, sink Sink) error {
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(attribute.String("workflow_id", workflowID)))
	defer span.End()

	if e.metrics != nil {
		e.metrics.ActiveRuns.Add(ctx, 1)
		defer e.metrics.ActiveRuns.Add(ctx, -1)
	}

	current := string(agent.Coordinator)
	step := 0

	for current != state.Terminal {
		if err := ctx.Err(); err != nil {
			return err
		}

		worker := agent.Worker(current)
		agentID := events.AgentID(workflowID, current, step)
		sink(events.NewStartOfAgent(agentID, current))

		cmd, err := e.runNodeTraced(ctx, workflowID, worker, agentID, st, sink)
		if err != nil {
			sink(events.NewEndOfAgent(agentID))
			return fmt.Errorf("workflow: node %q: %w", current, err)
		}

		st.Apply(cmd.Update)
		sink(events.NewEndOfAgent(agentID))

		if cmd.Goto == "" {
			return fmt.Errorf("workflow: node %q returned an empty Goto", current)
		}
		current = cmd.Goto
		step++
	}

	return nil
}

// runNodeTraced wraps runNode with a child span and a node-duration
// histogram record, keyed by the node name, so the per-node-type cost of a
// run is visible in both tracing and metrics backends.
func (e *Engine) runNodeTraced(ctx context.Context, workflowID string, worker agent.Worker, agentID string, st *state.WorkflowState, sink Sink) (state.NodeCommand, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.node."+string(worker))
	defer span.End()

	start := time.Now()
	cmd, err := e.runNode(ctx, workflowID, worker, agentID, st, sink)
	if e.metrics != nil {
		e.metrics.NodeDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("node", string(worker))))
	}
	if err != nil {
		span.RecordError(err)
	}
	return cmd, err
}

func (e *Engine) runNode(ctx context.Context, workflowID string, worker agent.Worker, agentID string, st *state.WorkflowState, sink Sink) (state.NodeCommand, error) {
	switch worker {
	case agent.Coordinator:
		return e.coordinatorNode(ctx, st, sink)
	case agent.Planner:
		return e.plannerNode(ctx, workflowID, agentID, st, sink)
	case agent.Supervisor:
		return e.supervisorNode(ctx, st, sink)
	default:
		return e.reactWorkerNode(ctx, workflowID, worker, agentID, st, sink)
	}
}

func (e *Engine) invoke(ctx context.Context, class agent.ModelClass, messages []prompt.ChatMessage) (llm.Message, error) {
	return e.llm.Invoke(ctx, class, messages)
}

func lastUserMessage(st *state.WorkflowState) string {
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Role == state.RoleUser {
			return st.Messages[i].Content
		}
	}
	return ""
}

func textPatch(goto_ string, role state.Role, content string) state.NodeCommand {
	next := goto_
	return state.NodeCommand{
		Update: state.Patch{
			Next:           &next,
			AppendMessages: []state.Message{{Role: role, Type: state.MessageTypeText, Content: content}},
		},
		Goto: goto_,
	}
}

func routeOnly(goto_ string) state.NodeCommand {
	next := goto_
	return state.NodeCommand{Update: state.Patch{Next: &next}, Goto: goto_}
}

// planPatch applies a parsed plan alongside the routing decision.
func planPatch(goto_ string, p *plan.Plan) state.NodeCommand {
	next := goto_
	return state.NodeCommand{Update: state.Patch{Next: &next, Plan: p}, Goto: goto_}
}
