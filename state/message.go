// Package state defines the Data Model shared by the Session Store, the
// Workflow Engine, the Event Projector, and the Prompt Binder: Session,
// Message, Workflow State, and Node Command.
package state

import "time"

// Role is a message's author role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageType distinguishes plain text messages from workflow envelopes.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeWorkflow MessageType = "workflow"
)

// Message is a single, immutable entry in a session's append-only log.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Role      Role        `json:"role"`
	Type      MessageType `json:"type"`
	// Content is free text for MessageTypeText, or a JSON-encoded
	// `{"workflow": ...}` envelope for MessageTypeWorkflow.
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the message satisfies the invariant that every
// persisted message has a non-empty role and type drawn from the allowed
// sets.
func (m Message) Valid() bool {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return false
	}
	switch m.Type {
	case MessageTypeText, MessageTypeWorkflow:
	default:
		return false
	}
	return true
}
