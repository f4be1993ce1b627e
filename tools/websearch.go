package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// WebSearchTool implements the web-search capability over Tavily's general
// web topic.
type WebSearchTool struct {
	client *tavilyClient
}

// NewWebSearchTool builds the web-search tool from an already-resolved
// Tavily API key and result-count cap.
func NewWebSearchTool(apiKey string, maxResults int) *WebSearchTool {
	return &WebSearchTool{client: newTavilyClient(apiKey, maxResults)}
}

func (t *WebSearchTool) Info() ToolInfo {
	return ToolInfo{
		Name:         "web-search",
		Description:  "Searches the general web for information relevant to a query.",
		InputSchema:  `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`,
		OutputSchema: `{"type":"object","properties":{"results":{"type":"array"}}}`,
		Idempotent:   true,
	}
}

func (t *WebSearchTool) Invoke(ctx context.Context, args map[string]any, onProgress ProgressFunc) (Result, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return Result{}, NewError("web-search", ErrorKindValidation, fmt.Errorf("query is required"))
	}

	if onProgress != nil {
		onProgress(ProgressEvent{Message: fmt.Sprintf("searching the web for %q", query)})
	}

	resp, err := t.client.search(ctx, query, "general", "basic")
	if err != nil {
		return Result{}, err
	}

	content, err := json.Marshal(resp)
	if err != nil {
		return Result{}, NewError("web-search", ErrorKindPermanent, err)
	}
	return Result{Content: string(content)}, nil
}

// AbstractSearchTool implements the abstract-search capability: a Tavily
// query on the "general" topic with the "advanced" search depth, where the
// web-search tool uses the "basic" depth.
type AbstractSearchTool struct {
	client *tavilyClient
}

// NewAbstractSearchTool builds the abstract-search tool.
func NewAbstractSearchTool(apiKey string, maxResults int) *AbstractSearchTool {
	return &AbstractSearchTool{client: newTavilyClient(apiKey, maxResults)}
}

func (t *AbstractSearchTool) Info() ToolInfo {
	return ToolInfo{
		Name:         "abstract-search",
		Description:  "Searches for scholarly or clinical abstracts relevant to a query.",
		InputSchema:  `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`,
		OutputSchema: `{"type":"object","properties":{"results":{"type":"array"}}}`,
		Idempotent:   true,
	}
}

func (t *AbstractSearchTool) Invoke(ctx context.Context, args map[string]any, onProgress ProgressFunc) (Result, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return Result{}, NewError("abstract-search", ErrorKindValidation, fmt.Errorf("query is required"))
	}

	if onProgress != nil {
		onProgress(ProgressEvent{Message: fmt.Sprintf("searching abstracts for %q", query)})
	}

	resp, err := t.client.search(ctx, query, "general", "advanced")
	if err != nil {
		return Result{}, err
	}

	content, err := json.Marshal(resp)
	if err != nil {
		return Result{}, NewError("abstract-search", ErrorKindPermanent, err)
	}
	return Result{Content: string(content)}, nil
}
