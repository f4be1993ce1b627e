// Package config provides the typed configuration surface for the medical-assistant
// workflow engine.
//
// This file contains environment variable utilities: .env loading and the
// overlay of the recognised environment keys onto a Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads environment variables from .env files.
// Priority order: system environment (highest) → .env.local → .env (lowest);
// godotenv never overrides a variable that is already set.
func LoadEnvFiles() error {
	envFiles := []string{".env.local", ".env"}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}

// OverlayEnv applies the recognised environment keys on top of a Config
// loaded from YAML. Environment variables always take precedence, matching
// the twelve-factor convention the teacher's own env.go follows.
func OverlayEnv(cfg *Config) {
	if cfg.LLMs == nil {
		cfg.LLMs = make(map[string]LLMClassConfig)
	}

	for _, class := range []string{"basic", "reasoning", "vl"} {
		prefix := strings.ToUpper(class)
		llm := cfg.LLMs[class]
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			llm.APIKey = v
		}
		if v := os.Getenv(prefix + "_MODEL"); v != "" {
			llm.Model = v
		}
		if v := os.Getenv(prefix + "_BASE_URL"); v != "" {
			llm.BaseURL = v
		}
		cfg.LLMs[class] = llm
	}

	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("TAVILY_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxResults = n
		}
	}

	if v := os.Getenv("CHROME_INSTANCE_PATH"); v != "" {
		cfg.Browser.InstancePath = v
	}
	if v := os.Getenv("CHROME_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v := os.Getenv("CHROME_PROXY_SERVER"); v != "" {
		cfg.Browser.ProxyServer = v
	}
	if v := os.Getenv("CHROME_PROXY_USERNAME"); v != "" {
		cfg.Browser.ProxyUsername = v
	}
	if v := os.Getenv("CHROME_PROXY_PASSWORD"); v != "" {
		cfg.Browser.ProxyPassword = v
	}
	if v := os.Getenv("BROWSER_USE_TEXT_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.TextOnly = b
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}

	if v := os.Getenv("MEDASSIST_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("MEDASSIST_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("MEDASSIST_RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RunTimeout = d
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Server.OTLPEndpoint = v
	}
}
