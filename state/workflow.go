package state

import "github.com/medassist-ai/core/internal/plan"

// Terminal is the special goto value denoting run end. The coordinator
// returns it on a direct reply and the reporter on completion, so the engine
// has a single termination check. The supervisor's "FINISH" decision uses
// the same string but routes to the reporter instead of ending the run.
const Terminal = "FINISH"

// WorkflowState is live, in-memory state during a run; its final form is
// snapshotted into the Session's state field on termination.
type WorkflowState struct {
	TeamRoster           []string   `json:"team_roster"`
	DeepThinking         bool       `json:"deep_thinking_mode"`
	SearchBeforePlanning bool       `json:"search_before_planning"`
	// Debug adds the parsed Plan JSON and the supervisor's raw
	// structured-output payload to the log as slog.Debug records. It does
	// not change any log level, so those records appear only when the
	// process already logs at debug level. It has no effect on the emitted
	// event stream or HTTP response shape.
	Debug    bool       `json:"debug,omitempty"`
	Messages []Message  `json:"messages"`
	Next     string     `json:"next"`
	Plan     *plan.Plan `json:"plan,omitempty"`
}

// Patch is the partial update a worker's Node Command applies to the
// Workflow State. Fields are pointers/nil-slices so "unset" is distinguishable
// from "set to zero value"; the engine applies every non-nil field atomically
// before consulting Goto.
type Patch struct {
	Next           *string
	Plan           *plan.Plan
	AppendMessages []Message
}

// NodeCommand is a worker's return value: a state patch plus the routing
// decision for the next node (or the terminal sentinel).
type NodeCommand struct {
	Update Patch
	Goto   string
}

// Apply merges a Patch into the Workflow State in place.
func (s *WorkflowState) Apply(p Patch) {
	if p.Next != nil {
		s.Next = *p.Next
	}
	if p.Plan != nil {
		s.Plan = p.Plan
	}
	if len(p.AppendMessages) > 0 {
		s.Messages = append(s.Messages, p.AppendMessages...)
	}
}

// HasWorker reports whether name is present in the run's team roster.
func (s *WorkflowState) HasWorker(name string) bool {
	for _, w := range s.TeamRoster {
		if w == name {
			return true
		}
	}
	return false
}
