package workflow

import (
	"encoding/json"
	"regexp"
	"strings"
)

// toolCallTag is the wire convention a react-style worker's LLM output uses
// to request a tool invocation: a single <tool_call>{...}</tool_call> block
// embedded in otherwise free-form text. Anything outside the tag is the
// worker's visible reasoning/answer text.
var toolCallTag = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

// toolCall is a worker's request to invoke one Tool Layer member.
type toolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// extractToolCall looks for a tool_call tag in content. It returns the
// decoded call and the content with the tag removed, or ok=false if no tag
// is present (the worker is signaling it is done).
func extractToolCall(content string) (call toolCall, rest string, ok bool) {
	match := toolCallTag.FindStringSubmatchIndex(content)
	if match == nil {
		return toolCall{}, content, false
	}

	if err := json.Unmarshal([]byte(content[match[2]:match[3]]), &call); err != nil {
		return toolCall{}, content, false
	}
	if call.Name == "" {
		return toolCall{}, content, false
	}

	rest = strings.TrimSpace(content[:match[0]] + content[match[1]:])
	return call, rest, true
}
