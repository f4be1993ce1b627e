// Package agent implements the Agent Registry: a static, process-wide table
// of worker identities consumed by the Workflow Engine and the HTTP surface.
package agent

// ModelClass names one of the LLM Adapter's three model classes.
type ModelClass string

const (
	ModelClassBasic     ModelClass = "basic"
	ModelClassReasoning ModelClass = "reasoning"
	ModelClassVision    ModelClass = "vision"
)

// Worker names the fixed set of roles the Workflow Engine can route to. It is
// a closed enum: adding a worker means updating this list, the registry
// table in NewRegistry, the prompt templates, and the Event Projector together.
type Worker string

const (
	Coordinator Worker = "coordinator"
	Planner     Worker = "planner"
	Supervisor  Worker = "supervisor"
	Researcher  Worker = "researcher"
	Coder       Worker = "coder"
	Browser     Worker = "browser"
	Reporter    Worker = "reporter"
	Translator  Worker = "translator"
)

// Entry describes one worker in the registry: its human-facing and
// LLM-facing descriptions, whether a client may omit it from a team roster,
// and the model class it uses absent an override.
type Entry struct {
	Name               Worker     `json:"name"`
	HumanDescription   string     `json:"human_description"`
	LLMDescription     string     `json:"llm_description"`
	Optional           bool       `json:"optional"`
	DefaultModelClass  ModelClass `json:"default_model_class"`
}
