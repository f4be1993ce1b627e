// Package prompt implements the Prompt Binder: a pure function from a
// worker name and the current Workflow State to the chat-message list handed
// to the LLM Adapter.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/state"
	"github.com/medassist-ai/core/utils"
)

// maxHistoryTokens bounds how much conversation history is rendered into a
// worker's prompt. Past this budget, the oldest messages are dropped first;
// the most recent turns matter most for routing and tool-call continuity.
const maxHistoryTokens = 6000

// ChatMessage is the adapter-facing message shape: a role plus text content.
// It intentionally mirrors the LLM Adapter's invoke/stream contract rather
// than any one provider SDK's wire type.
type ChatMessage struct {
	Role    string
	Content string
}

// templates holds one text/template backbone per worker. Each template sees
// the same data fields (CurrentTime, TeamRoster, History) and differs only in
// its system/instructions copy — prompt authoring itself is out of scope; the
// strings below are placeholders for the backbone the templates are built
// around.
var templates = map[agent.Worker]*template.Template{}

func init() {
	for _, w := range []agent.Worker{
		agent.Coordinator, agent.Planner, agent.Supervisor,
		agent.Researcher, agent.Coder, agent.Browser, agent.Reporter, agent.Translator,
	} {
		templates[w] = template.Must(template.New(string(w)).Parse(backboneTemplate))
	}
}

const backboneTemplate = `You are the {{.WorkerName}} worker on a medical-information assistant team.

Current time: {{.CurrentTime}}
Team roster: {{.TeamRoster}}

{{.History}}`

type templateData struct {
	WorkerName  string
	CurrentTime string
	TeamRoster  string
	History     string
}

// Binder is the Prompt Binder. now is injectable so binding is deterministic
// in tests; production code wires time.Now.
type Binder struct {
	registry *agent.Registry
	now      func() time.Time
}

// New constructs a Binder bound to the given Agent Registry (used to render
// the team roster description).
func New(registry *agent.Registry) *Binder {
	return &Binder{registry: registry, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (b *Binder) WithClock(now func() time.Time) *Binder {
	b.now = now
	return b
}

// Bind produces the chat-message list for a worker given the current
// Workflow State. It is a pure function over its inputs for a fixed template
// set: same worker, same state, same clock reading → same output.
func (b *Binder) Bind(worker agent.Worker, st *state.WorkflowState) ([]ChatMessage, error) {
	tmpl, ok := templates[worker]
	if !ok {
		return nil, fmt.Errorf("prompt: no template registered for worker %q", worker)
	}

	data := templateData{
		WorkerName:  string(worker),
		CurrentTime: b.now().UTC().Format(time.RFC3339),
		TeamRoster:  b.rosterDescription(st.TeamRoster),
		History:     formatHistory(truncateHistory(st.Messages, maxHistoryTokens)),
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("prompt: rendering template for %q: %w", worker, err)
	}

	messages := []ChatMessage{{Role: "system", Content: out.String()}}
	for _, m := range truncateHistory(st.Messages, maxHistoryTokens) {
		messages = append(messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return messages, nil
}

// truncateHistory keeps the most recent messages whose combined estimated
// token count fits within budget, always keeping at least the last message
// so a worker never sees an empty turn.
func truncateHistory(messages []state.Message, budget int) []state.Message {
	if len(messages) == 0 {
		return messages
	}

	total := 0
	cut := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		total += utils.EstimateTokens(messages[i].Content)
		if total > budget && cut != len(messages) {
			break
		}
		cut = i
	}
	return messages[cut:]
}

func (b *Binder) rosterDescription(roster []string) string {
	parts := make([]string, 0, len(roster))
	for _, name := range roster {
		if entry, ok := b.registry.Get(agent.Worker(name)); ok {
			parts = append(parts, fmt.Sprintf("%s (%s)", entry.Name, entry.LLMDescription))
			continue
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "; ")
}

func formatHistory(messages []state.Message) string {
	if len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return b.String()
}
