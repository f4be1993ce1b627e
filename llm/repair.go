package llm

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// repairJSON handles the one malformed-output shape that actually recurs in
// practice: a model wrapping its JSON in markdown fences or prose. It never
// attempts to fix structurally broken JSON (missing braces, trailing commas)
// — that case is left to fail schema validation and trigger the adapter's
// single retry.
func repairJSON(raw string) (string, bool) {
	candidate := extractJSONObject(raw)
	if candidate == "" {
		return "", false
	}
	if !gjson.Valid(candidate) {
		return "", false
	}

	// Set-then-delete a scratch key through sjson. sjson edits the raw text
	// in place, so the result keeps the candidate's original formatting.
	normalized, err := sjson.SetRaw(candidate, "_", "null")
	if err != nil {
		return "", false
	}
	normalized, err = sjson.Delete(normalized, "_")
	if err != nil {
		return "", false
	}
	return normalized, true
}

func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
