package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyMergesPatchAtomically(t *testing.T) {
	s := &WorkflowState{TeamRoster: []string{"coordinator", "planner"}}

	next := "supervisor"
	s.Apply(Patch{
		Next:           &next,
		AppendMessages: []Message{{ID: "m1", Role: RoleAssistant, Type: MessageTypeText, Content: "hi"}},
	})

	assert.Equal(t, "supervisor", s.Next)
	assert.Len(t, s.Messages, 1)
}

func TestHasWorker(t *testing.T) {
	s := &WorkflowState{TeamRoster: []string{"coordinator", "reporter"}}
	assert.True(t, s.HasWorker("reporter"))
	assert.False(t, s.HasWorker("researcher"))
}

func TestMessageValid(t *testing.T) {
	valid := Message{Role: RoleUser, Type: MessageTypeText}
	assert.True(t, valid.Valid())

	invalid := Message{Role: "bogus", Type: MessageTypeText}
	assert.False(t, invalid.Valid())
}
