// Package plan defines the planner's structured output shape and validates
// it against a generated JSON Schema.
//
// This is a supplemented feature: the core spec treats the planner's output
// as "free-form text or JSON" and only the Glossary pins down its shape. A
// concrete, parseable type is required for the planner's per-node contract
// (parse-or-terminate) to be implementable at all.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"

	invopopschema "github.com/invopop/jsonschema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Step is one unit of work the planner assigns to a team member.
type Step struct {
	AgentName   string `json:"agent_name" jsonschema:"required"`
	Title       string `json:"title" jsonschema:"required"`
	Description string `json:"description" jsonschema:"required"`
	Note        string `json:"note,omitempty"`
}

// Plan is the planner's structured breakdown of steps.
type Plan struct {
	Thought string `json:"thought" jsonschema:"required"`
	Title   string `json:"title" jsonschema:"required"`
	Steps   []Step `json:"steps" jsonschema:"required"`
}

var compiledSchema *jsonschema.Schema

func init() {
	reflector := &invopopschema.Reflector{ExpandedStruct: true}
	raw, err := json.Marshal(reflector.Reflect(&Plan{}))
	if err != nil {
		panic(fmt.Sprintf("plan: reflecting schema: %v", err))
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("plan: unmarshaling schema: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("plan.json", doc); err != nil {
		panic(fmt.Sprintf("plan: adding schema resource: %v", err))
	}
	compiledSchema, err = compiler.Compile("plan.json")
	if err != nil {
		panic(fmt.Sprintf("plan: compiling schema: %v", err))
	}
}

// Parse decodes and schema-validates raw planner output into a Plan. It
// returns an error whenever the text is not valid JSON or does not satisfy
// the Plan schema — the caller (the planner node) treats either case as a
// parse failure per the per-node contract in §4.6.
func Parse(raw string) (*Plan, error) {
	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("plan is not valid JSON: %w", err)
	}

	if err := compiledSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("plan does not match schema: %w", err)
	}

	var p Plan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("plan JSON could not be decoded: %w", err)
	}
	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	return &p, nil
}
