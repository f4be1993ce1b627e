// Package events implements the Event Projector's closed event vocabulary:
// the fixed set of event shapes the Workflow Engine's internals are
// translated into before they reach the Stream Transport.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type is the closed set of event kinds the projector emits.
type Type string

const (
	TypeStartOfWorkflow    Type = "start_of_workflow"
	TypeStartOfAgent       Type = "start_of_agent"
	TypeEndOfAgent         Type = "end_of_agent"
	TypeStartOfLLM         Type = "start_of_llm"
	TypeEndOfLLM           Type = "end_of_llm"
	TypeMessage            Type = "message"
	TypeToolCall           Type = "tool_call"
	TypeToolCallResult     Type = "tool_call_result"
	TypeEndOfWorkflow      Type = "end_of_workflow"
	TypeFinalSessionState  Type = "final_session_state"
	TypeSessionID          Type = "session_id"
)

// Envelope is the wire shape every event takes: an id, its type, the instant
// it was produced, and the type-specific payload.
type Envelope struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func newEnvelope(t Type, data any) Envelope {
	return Envelope{ID: uuid.NewString(), Type: t, Timestamp: time.Now().UTC(), Data: data}
}

// StartOfWorkflowData is emitted once, at planner entry.
type StartOfWorkflowData struct {
	WorkflowID string `json:"workflow_id"`
	Input      string `json:"input"`
}

// NewStartOfWorkflow builds a start_of_workflow event.
func NewStartOfWorkflow(workflowID, input string) Envelope {
	return newEnvelope(TypeStartOfWorkflow, StartOfWorkflowData{WorkflowID: workflowID, Input: input})
}

// StartOfAgentData brackets the start of a node execution.
type StartOfAgentData struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

// NewStartOfAgent builds a start_of_agent event.
func NewStartOfAgent(agentID, agentName string) Envelope {
	return newEnvelope(TypeStartOfAgent, StartOfAgentData{AgentID: agentID, AgentName: agentName})
}

// EndOfAgentData brackets the end of a node execution.
type EndOfAgentData struct {
	AgentID string `json:"agent_id"`
}

// NewEndOfAgent builds an end_of_agent event.
func NewEndOfAgent(agentID string) Envelope {
	return newEnvelope(TypeEndOfAgent, EndOfAgentData{AgentID: agentID})
}

// StartOfLLMData brackets an LLM call.
type StartOfLLMData struct {
	AgentName string `json:"agent_name"`
}

// NewStartOfLLM builds a start_of_llm event.
func NewStartOfLLM(agentName string) Envelope {
	return newEnvelope(TypeStartOfLLM, StartOfLLMData{AgentName: agentName})
}

// EndOfLLMData closes the bracket opened by StartOfLLMData.
type EndOfLLMData struct {
	AgentName string `json:"agent_name"`
}

// NewEndOfLLM builds an end_of_llm event.
func NewEndOfLLM(agentName string) Envelope {
	return newEnvelope(TypeEndOfLLM, EndOfLLMData{AgentName: agentName})
}

// MessageDelta carries one token group of a streamed LLM response.
// Concatenating Content across a message id's events reconstructs the
// final text; ReasoningContent carries extended-thinking deltas.
type MessageDelta struct {
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// MessageData is emitted once per LLM token group.
type MessageData struct {
	MessageID string       `json:"message_id"`
	Delta     MessageDelta `json:"delta"`
}

// NewMessage builds a message event.
func NewMessage(messageID string, delta MessageDelta) Envelope {
	return newEnvelope(TypeMessage, MessageData{MessageID: messageID, Delta: delta})
}

// ToolCallData brackets the start of a tool invocation.
type ToolCallData struct {
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	ToolInput  map[string]any `json:"tool_input"`
}

// NewToolCall builds a tool_call event.
func NewToolCall(toolCallID, toolName string, toolInput map[string]any) Envelope {
	return newEnvelope(TypeToolCall, ToolCallData{ToolCallID: toolCallID, ToolName: toolName, ToolInput: toolInput})
}

// ToolCallResultData closes the bracket opened by ToolCallData.
type ToolCallResultData struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	ToolResult string `json:"tool_result"`
}

// NewToolCallResult builds a tool_call_result event.
func NewToolCallResult(toolCallID, toolName, toolResult string) Envelope {
	return newEnvelope(TypeToolCallResult, ToolCallResultData{ToolCallID: toolCallID, ToolName: toolName, ToolResult: toolResult})
}

// EndOfWorkflowData is the final aggregate emitted once a run terminates.
type EndOfWorkflowData struct {
	WorkflowID string `json:"workflow_id"`
	Messages   []any  `json:"messages"`
}

// NewEndOfWorkflow builds an end_of_workflow event.
func NewEndOfWorkflow(workflowID string, messages []any) Envelope {
	return newEnvelope(TypeEndOfWorkflow, EndOfWorkflowData{WorkflowID: workflowID, Messages: messages})
}

// FinalSessionStateData is the snapshot handed to the client for display
// rehydration.
type FinalSessionStateData struct {
	Messages []any `json:"messages"`
}

// NewFinalSessionState builds a final_session_state event.
func NewFinalSessionState(messages []any) Envelope {
	return newEnvelope(TypeFinalSessionState, FinalSessionStateData{Messages: messages})
}

// SessionIDData lets the client persist the session id before a potential
// disconnect.
type SessionIDData struct {
	SessionID string `json:"session_id"`
}

// NewSessionID builds a session_id event.
func NewSessionID(sessionID string) Envelope {
	return newEnvelope(TypeSessionID, SessionIDData{SessionID: sessionID})
}

// ToolCallID builds the per-run identifier for a tool invocation:
// "{workflow_id}_{worker}_{tool_name}_{counter}".
func ToolCallID(workflowID, worker, toolName string, counter int) string {
	return workflowID + "_" + worker + "_" + toolName + "_" + itoa(counter)
}

// AgentID builds the per-run identifier for a node execution:
// "{workflow_id}_{worker}_{step}".
func AgentID(workflowID, worker string, step int) string {
	return workflowID + "_" + worker + "_" + itoa(step)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
