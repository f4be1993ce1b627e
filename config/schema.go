package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONSchema reflects the Config struct into a JSON Schema document so
// operators can validate a YAML config file before starting the server, and
// so it can be served from the /api/schema debug endpoint.
func JSONSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: false,
	}
	schema := reflector.Reflect(&Config{})
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling config schema: %w", err)
	}
	return out, nil
}
