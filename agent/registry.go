package agent

import (
	"fmt"
	"sort"
)

// Registry is a static, process-wide table keyed by worker name. Mandatory
// workers cannot be disabled by the client; optional workers may be omitted
// from a run's team roster.
type Registry struct {
	entries map[Worker]Entry
}

// NewRegistry builds the fixed worker table. The set of workers and their
// mandatory/optional split is not configuration — it mirrors the closed enum
// the Workflow Engine's graph topology is written against.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[Worker]Entry, 8)}

	r.add(Entry{
		Name:              Coordinator,
		HumanDescription:  "Routes a user turn either straight to an assistant reply or into the planning pipeline.",
		LLMDescription:    "coordinator: decides whether a request needs the full research/planning pipeline or a direct answer",
		Optional:          false,
		DefaultModelClass: ModelClassBasic,
	})
	r.add(Entry{
		Name:              Planner,
		HumanDescription:  "Breaks a handed-off request into a structured plan of steps for the team.",
		LLMDescription:    "planner: produces a structured plan of steps for the team to execute",
		Optional:          false,
		DefaultModelClass: ModelClassBasic,
	})
	r.add(Entry{
		Name:              Supervisor,
		HumanDescription:  "Dispatches plan steps to team members and decides when the run is complete.",
		LLMDescription:    "supervisor: chooses which team member acts next, or signals completion",
		Optional:          false,
		DefaultModelClass: ModelClassBasic,
	})
	r.add(Entry{
		Name:              Researcher,
		HumanDescription:  "Gathers information using web search and crawling tools.",
		LLMDescription:    "researcher: searches and reads external sources to gather information",
		Optional:          true,
		DefaultModelClass: ModelClassBasic,
	})
	r.add(Entry{
		Name:              Coder,
		HumanDescription:  "Writes and executes code to analyze data or compute results.",
		LLMDescription:    "coder: writes and runs code to analyze data or compute results",
		Optional:          true,
		DefaultModelClass: ModelClassBasic,
	})
	r.add(Entry{
		Name:              Browser,
		HumanDescription:  "Drives a headless browser session to interact with web pages.",
		LLMDescription:    "browser: drives a headless browser and observes page screenshots",
		Optional:          true,
		DefaultModelClass: ModelClassVision,
	})
	r.add(Entry{
		Name:              Reporter,
		HumanDescription:  "Synthesizes the team's findings into the final reply.",
		LLMDescription:    "reporter: writes the final reply summarizing the team's work",
		Optional:          false,
		DefaultModelClass: ModelClassBasic,
	})
	r.add(Entry{
		Name:              Translator,
		HumanDescription:  "Translates a non-English user turn before the pipeline runs.",
		LLMDescription:    "translator: translates the user's turn to and from English",
		Optional:          true,
		DefaultModelClass: ModelClassBasic,
	})

	return r
}

func (r *Registry) add(e Entry) { r.entries[e.Name] = e }

// Get returns the entry for a worker name, if registered.
func (r *Registry) Get(name Worker) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// List returns every registered entry, ordered by name for deterministic
// rendering on the /api/team_members surface.
func (r *Registry) List() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Mandatory returns the names of workers that cannot be disabled.
func (r *Registry) Mandatory() []Worker {
	var out []Worker
	for _, e := range r.List() {
		if !e.Optional {
			out = append(out, e.Name)
		}
	}
	return out
}

// ValidateRoster checks a client-supplied team roster against the registry:
// it must be non-empty, every named worker must be registered, and every
// mandatory worker must be present.
func (r *Registry) ValidateRoster(roster []string) error {
	if len(roster) == 0 {
		return fmt.Errorf("team_members must not be empty")
	}

	present := make(map[Worker]bool, len(roster))
	for _, name := range roster {
		w := Worker(name)
		if _, ok := r.entries[w]; !ok {
			return fmt.Errorf("unknown worker in team_members: %q", name)
		}
		present[w] = true
	}

	for _, m := range r.Mandatory() {
		if !present[m] {
			return fmt.Errorf("team_members is missing mandatory worker %q", m)
		}
	}

	return nil
}
