package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPSourceConfig configures a connection to an external MCP server launched
// as a subprocess (stdio transport). It is the Tool Layer's extensibility
// seam: any MCP-compliant server's tools are discovered and registered
// alongside the built-in capabilities.
type MCPSourceConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	Filter  []string
}

// MCPSource connects lazily to an MCP server and exposes its tools as
// Registry-compatible Tool values.
type MCPSource struct {
	cfg MCPSourceConfig

	mu        sync.Mutex
	client    *client.Client
	connected bool
	filterSet map[string]bool
}

// NewMCPSource builds an MCP source. The subprocess is not started until
// Discover is called.
func NewMCPSource(cfg MCPSourceConfig) (*MCPSource, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("tools: mcp source %q requires a command", cfg.Name)
	}

	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}

	return &MCPSource{cfg: cfg, filterSet: filterSet}, nil
}

// Discover starts the MCP subprocess (if not already running), lists its
// tools, and returns them wrapped as Tool values ready for Registry.Register.
func (s *MCPSource) Discover(ctx context.Context) ([]Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		if err := s.connect(ctx); err != nil {
			return nil, fmt.Errorf("tools: connecting to mcp source %q: %w", s.cfg.Name, err)
		}
	}

	listResp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, NewError(s.cfg.Name, ErrorKindNetwork, err)
	}

	out := make([]Tool, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		if s.filterSet != nil && !s.filterSet[t.Name] {
			continue
		}
		out = append(out, &mcpTool{
			source: s,
			name:   t.Name,
			desc:   t.Description,
			schema: convertMCPSchema(t.InputSchema),
		})
	}
	return out, nil
}

func (s *MCPSource) connect(ctx context.Context) error {
	mcpClient, err := client.NewStdioMCPClient(s.cfg.Command, envSlice(s.cfg.Env), s.cfg.Args...)
	if err != nil {
		return fmt.Errorf("starting mcp client: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("starting mcp subprocess: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "medassistd", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initializing mcp session: %w", err)
	}

	s.client = mcpClient
	s.connected = true
	return nil
}

// Close shuts down the MCP subprocess, if running.
func (s *MCPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.connected = false
	return err
}

// mcpTool adapts a single tool exposed by an MCP server to the Tool
// interface.
type mcpTool struct {
	source *MCPSource
	name   string
	desc   string
	schema string
}

func (t *mcpTool) Info() ToolInfo {
	return ToolInfo{
		Name:        t.name,
		Description: t.desc,
		InputSchema: t.schema,
		Idempotent:  false,
	}
}

func (t *mcpTool) Invoke(ctx context.Context, args map[string]any, onProgress ProgressFunc) (Result, error) {
	t.source.mu.Lock()
	mcpClient := t.source.client
	t.source.mu.Unlock()

	if mcpClient == nil {
		return Result{}, NewError(t.name, ErrorKindPermanent, fmt.Errorf("mcp source %q not connected", t.source.cfg.Name))
	}

	if onProgress != nil {
		onProgress(ProgressEvent{Message: fmt.Sprintf("calling mcp tool %s", t.name)})
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, NewError(t.name, ErrorKindTimeout, err)
		}
		return Result{}, NewError(t.name, ErrorKindNetwork, err)
	}

	text, isErr := flattenMCPContent(resp)
	if isErr {
		return Result{}, NewError(t.name, ErrorKindPermanent, fmt.Errorf("%s", text))
	}
	return Result{Content: text}, nil
}

func flattenMCPContent(resp *mcp.CallToolResult) (string, bool) {
	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	joined := ""
	for i, t := range texts {
		if i > 0 {
			joined += "\n"
		}
		joined += t
	}
	return joined, resp.IsError
}

func envSlice(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

func convertMCPSchema(schema mcp.ToolInputSchema) string {
	data, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	return string(data)
}
