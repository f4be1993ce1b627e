package config

import (
	"fmt"
	"time"
)

// ============================================================================
// LLM CLASS CONFIGURATION
// ============================================================================

// LLMClassConfig holds the credential/model/endpoint triple for one of the
// three model classes {basic, reasoning, vision}.
type LLMClassConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// Validate implements ConfigInterface for LLMClassConfig. An entirely empty
// entry is an unconfigured class and passes; a partially filled one must
// name both an api_key and a model.
func (c *LLMClassConfig) Validate() error {
	if c.APIKey == "" && c.Model == "" && c.BaseURL == "" {
		return nil
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

// SetDefaults implements ConfigInterface for LLMClassConfig.
func (c *LLMClassConfig) SetDefaults() {}

// ============================================================================
// SEARCH TOOL CONFIGURATION
// ============================================================================

// SearchToolConfig configures the Tavily-backed web-search and abstract-search
// tools.
type SearchToolConfig struct {
	APIKey     string `yaml:"api_key"`
	MaxResults int    `yaml:"max_results"`
}

// Validate implements ConfigInterface for SearchToolConfig.
func (c *SearchToolConfig) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for SearchToolConfig.
func (c *SearchToolConfig) SetDefaults() {
	if c.MaxResults == 0 {
		c.MaxResults = 5
	}
}

// ============================================================================
// BROWSER DRIVER CONFIGURATION
// ============================================================================

// BrowserConfig configures the headless Chrome pool behind the browser-drive
// tool.
type BrowserConfig struct {
	InstancePath  string `yaml:"instance_path,omitempty"`
	Headless      bool   `yaml:"headless"`
	ProxyServer   string `yaml:"proxy_server,omitempty"`
	ProxyUsername string `yaml:"proxy_username,omitempty"`
	ProxyPassword string `yaml:"proxy_password,omitempty"`
	TextOnly      bool   `yaml:"text_only"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	TraceDir      string `yaml:"trace_dir,omitempty"`
}

// Validate implements ConfigInterface for BrowserConfig.
func (c *BrowserConfig) Validate() error {
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must be non-negative")
	}
	return nil
}

// SetDefaults implements ConfigInterface for BrowserConfig.
func (c *BrowserConfig) SetDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 1
	}
	if c.TraceDir == "" {
		c.TraceDir = "./browser_traces"
	}
}

// ============================================================================
// STORAGE CONFIGURATION
// ============================================================================

// StorageConfig configures the Session Store's SQL backend.
type StorageConfig struct {
	// DatabaseURL follows the "<dialect>://..." scheme convention, e.g.
	// "sqlite://./data/medassist.db", "postgres://...", "mysql://...".
	// An empty value defaults to a local embedded SQLite file.
	DatabaseURL string `yaml:"database_url,omitempty"`
}

// Validate implements ConfigInterface for StorageConfig.
func (c *StorageConfig) Validate() error { return nil }

// SetDefaults implements ConfigInterface for StorageConfig.
func (c *StorageConfig) SetDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = "sqlite://./data/medassist.db"
	}
}

// ============================================================================
// MCP TOOL SOURCE CONFIGURATION
// ============================================================================

// MCPSourceConfig configures one external MCP server whose tools are
// discovered at startup and registered alongside the built-in tools.
type MCPSourceConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Filter  []string          `yaml:"filter,omitempty"`
}

// Validate implements ConfigInterface for MCPSourceConfig.
func (c *MCPSourceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Command == "" {
		return fmt.Errorf("command is required")
	}
	return nil
}

// SetDefaults implements ConfigInterface for MCPSourceConfig.
func (c *MCPSourceConfig) SetDefaults() {}

// ============================================================================
// SERVER / AMBIENT CONFIGURATION
// ============================================================================

// ServerConfig configures the HTTP surface and ambient operational knobs.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr,omitempty"`
	LogLevel        string        `yaml:"log_level,omitempty"`
	RunTimeout      time.Duration `yaml:"run_timeout,omitempty"`
	OTLPEndpoint    string        `yaml:"otlp_endpoint,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// Validate implements ConfigInterface for ServerConfig.
func (c *ServerConfig) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug|info|warn|error, got %q", c.LogLevel)
	}
	return nil
}

// SetDefaults implements ConfigInterface for ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}
