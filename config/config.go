// Package config provides the typed configuration surface for the medical-assistant
// workflow engine.
//
// This file contains the main unified configuration entry point.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete process configuration: LLM-class credentials,
// tool credentials, storage DSN, and server/ambient knobs. It is the single
// entry point loaded at startup.
type Config struct {
	Server  ServerConfig     `yaml:"server,omitempty"`
	Storage StorageConfig    `yaml:"storage,omitempty"`
	Browser BrowserConfig    `yaml:"browser,omitempty"`
	Search  SearchToolConfig `yaml:"search,omitempty"`

	// LLMs holds the three model classes keyed "basic", "reasoning" and
	// "vl" (the vision class).
	LLMs map[string]LLMClassConfig `yaml:"llms,omitempty"`

	// MCP lists external MCP servers whose tools are discovered and
	// registered at startup, in addition to the built-in tool set.
	MCP []MCPSourceConfig `yaml:"mcp,omitempty"`
}

// Validate implements ConfigInterface for Config.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser config: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search config: %w", err)
	}
	for class, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm class %q: %w", class, err)
		}
	}
	for i := range c.MCP {
		if err := c.MCP[i].Validate(); err != nil {
			return fmt.Errorf("mcp source %d: %w", i, err)
		}
	}
	return nil
}

// SetDefaults implements ConfigInterface for Config.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Storage.SetDefaults()
	c.Browser.SetDefaults()
	c.Search.SetDefaults()
	if c.LLMs == nil {
		c.LLMs = make(map[string]LLMClassConfig)
	}
	for class := range c.LLMs {
		llm := c.LLMs[class]
		llm.SetDefaults()
		c.LLMs[class] = llm
	}
	for i := range c.MCP {
		c.MCP[i].SetDefaults()
	}
}

// Load reads a YAML config file (if path is non-empty and exists), overlays
// recognised environment variables per the external-interfaces contract, sets
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	OverlayEnv(cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
