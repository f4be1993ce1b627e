// Command medassistd is the CLI entrypoint for the medical-information
// assistant workflow engine.
//
// Usage:
//
//	medassistd serve --config config.yaml
//	medassistd version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/medassist-ai/core/agent"
	"github.com/medassist-ai/core/config"
	"github.com/medassist-ai/core/llm"
	"github.com/medassist-ai/core/observability"
	"github.com/medassist-ai/core/orchestrator"
	"github.com/medassist-ai/core/prompt"
	"github.com/medassist-ai/core/server"
	"github.com/medassist-ai/core/session"
	"github.com/medassist-ai/core/tools"
	"github.com/medassist-ai/core/workflow"
)

// maxConcurrentMCPDiscovery bounds how many MCP sources are built and
// queried for their tool list at once during startup.
const maxConcurrentMCPDiscovery = 4

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	fmt.Printf("medassistd version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	setupLogging(cli.LogLevel)

	if err := config.LoadEnvFiles(); err != nil {
		slog.Warn("loading .env files", "error", err)
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics, otelShutdown, err := observability.Init(ctx, "medassistd", cfg.Server.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down observability providers", "error", err)
		}
	}()

	app, err := build(ctx, cfg, metrics)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}
	defer app.sessions.Close()
	defer app.closeMCPSources()

	// Hot-reload is deliberately narrow in scope: only the log level is
	// re-applied from an edited config file. Re-wiring LLM backends, the
	// tool registry, or the session store live is out of scope here.
	if cli.Config != "" {
		stopWatch, err := config.WatchFile(ctx, cli.Config, func(updated *config.Config) {
			setupLogging(updated.Server.LogLevel)
		})
		if err != nil {
			slog.Warn("config hot-reload disabled", "error", err)
		} else {
			defer stopWatch()
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: app.server.Routes(),
	}

	go func() {
		slog.Info("listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped unexpectedly", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// application holds every wired collaborator that needs explicit teardown.
type application struct {
	sessions   *session.Store
	server     *server.Server
	mcpSources []*tools.MCPSource
}

func (a *application) closeMCPSources() {
	for _, src := range a.mcpSources {
		if err := src.Close(); err != nil {
			slog.Warn("closing mcp source", "error", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (*application, error) {
	registry := agent.NewRegistry()
	binder := prompt.New(registry)

	adapter, err := buildAdapter(cfg)
	if err != nil {
		return nil, err
	}

	toolRegistry, mcpSources, err := buildTools(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := session.New(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	engine := workflow.New(registry, binder, adapter, toolRegistry)
	engine.SetMetrics(metrics)
	orch := orchestrator.New(sessions, engine, registry, cfg.Server.RunTimeout, nil)
	httpSurface := server.New(orch, sessions, registry, cfg.Browser.TraceDir)

	return &application{sessions: sessions, server: httpSurface, mcpSources: mcpSources}, nil
}

// buildAdapter maps the config's LLM-class table onto the Adapter's model
// classes. "vl" is the config/env naming for the vision class, matching the
// VL_API_KEY/VL_MODEL/VL_BASE_URL environment keys already recognised by
// config.OverlayEnv.
func buildAdapter(cfg *config.Config) (*llm.Adapter, error) {
	anthropicCfgs := map[agent.ModelClass]config.LLMClassConfig{
		agent.ModelClassBasic:     cfg.LLMs["basic"],
		agent.ModelClassReasoning: cfg.LLMs["reasoning"],
	}
	anthropicBackend, err := llm.NewAnthropicBackend(anthropicCfgs)
	if err != nil {
		return nil, fmt.Errorf("building anthropic backend: %w", err)
	}

	backends := map[agent.ModelClass]llm.Backend{
		agent.ModelClassBasic:     anthropicBackend,
		agent.ModelClassReasoning: anthropicBackend,
	}

	if visionCfg, ok := cfg.LLMs["vl"]; ok && visionCfg.APIKey != "" {
		visionBackend, err := llm.NewOpenAIBackend(visionCfg)
		if err != nil {
			return nil, fmt.Errorf("building openai vision backend: %w", err)
		}
		backends[agent.ModelClassVision] = visionBackend
	}

	return llm.NewAdapter(backends), nil
}

func buildTools(ctx context.Context, cfg *config.Config) (*tools.Registry, []*tools.MCPSource, error) {
	registry := tools.NewRegistry()

	if cfg.Search.APIKey != "" {
		_ = registry.Register(tools.NewWebSearchTool(cfg.Search.APIKey, cfg.Search.MaxResults))
		_ = registry.Register(tools.NewAbstractSearchTool(cfg.Search.APIKey, cfg.Search.MaxResults))
	}
	_ = registry.Register(tools.NewCrawlTool())
	_ = registry.Register(tools.NewPythonExecTool("", 30*time.Second))
	_ = registry.Register(tools.NewShellExecTool(nil, "", 30*time.Second))
	_ = registry.Register(tools.NewBrowserTool(tools.BrowserOptions{
		InstancePath:  cfg.Browser.InstancePath,
		Headless:      cfg.Browser.Headless,
		ProxyServer:   cfg.Browser.ProxyServer,
		ProxyUsername: cfg.Browser.ProxyUsername,
		ProxyPassword: cfg.Browser.ProxyPassword,
		MaxConcurrent: cfg.Browser.MaxConcurrent,
		TraceDir:      cfg.Browser.TraceDir,
	}))

	sources, discoveredTools, err := discoverMCPSources(ctx, cfg.MCP)
	if err != nil {
		return nil, nil, err
	}
	for _, tool := range discoveredTools {
		_ = registry.Register(tool)
	}

	return registry, sources, nil
}

// discoverMCPSources builds and queries every configured MCP source
// concurrently, bounded to maxConcurrentMCPDiscovery in flight at once.
// Results are written into slices pre-sized by index so the bounded fan-in
// doesn't race on ordering; any single source's failure closes every
// source built so far and fails the whole call, since a half-registered
// tool set is not a state the caller can safely run with.
func discoverMCPSources(ctx context.Context, cfgs []config.MCPSourceConfig) ([]*tools.MCPSource, []tools.Tool, error) {
	sources := make([]*tools.MCPSource, len(cfgs))
	discovered := make([][]tools.Tool, len(cfgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentMCPDiscovery)

	for i, mcpCfg := range cfgs {
		i, mcpCfg := i, mcpCfg
		g.Go(func() error {
			source, err := tools.NewMCPSource(tools.MCPSourceConfig{
				Name:    mcpCfg.Name,
				Command: mcpCfg.Command,
				Args:    mcpCfg.Args,
				Env:     mcpCfg.Env,
				Filter:  mcpCfg.Filter,
			})
			if err != nil {
				return fmt.Errorf("building mcp source %q: %w", mcpCfg.Name, err)
			}

			sourceTools, err := source.Discover(gctx)
			if err != nil {
				_ = source.Close()
				return fmt.Errorf("discovering tools from mcp source %q: %w", mcpCfg.Name, err)
			}

			sources[i] = source
			discovered[i] = sourceTools
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, source := range sources {
			if source != nil {
				_ = source.Close()
			}
		}
		return nil, nil, err
	}

	built := make([]*tools.MCPSource, 0, len(sources))
	var allTools []tools.Tool
	for i, source := range sources {
		built = append(built, source)
		allTools = append(allTools, discovered[i]...)
	}

	return built, allTools, nil
}

func main() {
	var cli CLI
	parser := kong.Parse(&cli, kong.Name("medassistd"), kong.Description("Medical-information assistant workflow engine"))
	if err := parser.Run(&cli); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
