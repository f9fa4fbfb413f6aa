// Package main is the entry point for the BrainBridge conversational
// assistant service: a direct-message bot that composes per-turn
// context from conversation history, a personal facts store, semantic
// search over a knowledge base, and web search, then drives an LLM
// provider (with a tool-call loop) to produce a reply.
//
// Grounded on original_source/slack_bot.py's SlackBotService (env
// validation, service lifecycle, signal handling) for what this binary
// does, and on the teacher's cmd/nexus cobra command tree (main.go,
// commands_serve.go, handlers_serve.go) for how a service binary in this
// codebase is structured.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fsnotify/fsnotify"

	"github.com/earchibald/brainbridge/internal/appconfig"
	"github.com/earchibald/brainbridge/internal/compose"
	"github.com/earchibald/brainbridge/internal/conversation"
	"github.com/earchibald/brainbridge/internal/dedupe"
	"github.com/earchibald/brainbridge/internal/facts"
	"github.com/earchibald/brainbridge/internal/hooks"
	"github.com/earchibald/brainbridge/internal/mcp"
	"github.com/earchibald/brainbridge/internal/notify"
	"github.com/earchibald/brainbridge/internal/pipeline"
	"github.com/earchibald/brainbridge/internal/platform"
	"github.com/earchibald/brainbridge/internal/providers"
	"github.com/earchibald/brainbridge/internal/search"
	"github.com/earchibald/brainbridge/internal/secretstore"
	"github.com/earchibald/brainbridge/internal/service"
	"github.com/earchibald/brainbridge/internal/tools"
	"github.com/earchibald/brainbridge/internal/toolexec"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string
	var debug bool

	root := &cobra.Command{
		Use:          "brainbridge",
		Short:        "BrainBridge conversational assistant service",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "brainbridge.yaml", "Path to YAML configuration file")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	root.AddCommand(buildServiceCmd())
	return root
}

func buildServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the user-level service installation",
	}
	cmd.AddCommand(buildServiceInstallCmd(false), buildServiceInstallCmd(true))
	return cmd
}

func buildServiceInstallCmd(repair bool) *cobra.Command {
	var configPath string
	var restart bool
	use, short := "install", "Install a user-level service file"
	if repair {
		use, short = "repair", "Rewrite the user-level service file"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := service.InstallUserService(configPath, repair)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service file written: %s\n", result.Path)
			if restart {
				if steps, err := service.RestartUserService(cmd.Context()); err != nil {
					fmt.Fprintf(out, "Service restart failed: %v\n", err)
					for _, step := range steps {
						fmt.Fprintf(out, "  - %s\n", step)
					}
					return err
				}
				fmt.Fprintln(out, "Service restarted.")
			}
			for _, step := range result.Instructions {
				fmt.Fprintf(out, "  - %s\n", step)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "brainbridge.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVar(&restart, "restart", true, "Restart the service after writing the file")
	return cmd
}

// runServe loads configuration, wires every collaborator, and runs the
// service under the restart-on-crash Supervisor until a clean shutdown
// signal arrives.
func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	logger := slog.Default()

	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("configuration loaded",
		"brain_folder", cfg.BrainFolder,
		"search_url", cfg.SearchURL,
		"llm_url", cfg.LLMURL,
		"model", cfg.Model,
		"enable_brain_search", cfg.EnableBrainSearch,
		"enable_web_search", cfg.EnableWebSearch,
		"web_search_provider", cfg.WebSearchProvider,
	)

	reg := prometheus.NewRegistry()
	metrics := service.NewMetrics(reg)
	go serveMetrics(cfg.MetricsAddr, reg, logger)

	app, err := buildApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("wire service: %w", err)
	}

	gcSweeper := service.NewGCSweeper(app.dedupe, metrics, logger)
	if err := gcSweeper.Start(); err != nil {
		return fmt.Errorf("start gc sweeper: %w", err)
	}
	defer gcSweeper.Stop()

	var notifier service.Notifier
	if cfg.NotifyTopic != "" {
		notifier = notify.New(cfg.NotifyBaseURL, cfg.NotifyTopic, nil)
	}

	supervisor := service.NewSupervisor("brainbridge", app.run, notifier, cfg.BrainFolder, metrics, logger)
	return supervisor.Serve(ctx)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

// app bundles the wired collaborators that outlive a single Supervisor
// attempt, so GC sweeping and metrics can reach them independent of
// run's lifetime.
type app struct {
	dedupe *dedupe.Store
	run    service.Run
}

// mcpSecretResolver adapts secretstore.Client to mcp.SecretResolver.
// With a nil store (no secret backend configured) GetSecret returns an
// error, unlike buildApp's resolveSecret, which falls back to the raw value.
type mcpSecretResolver struct {
	secrets *secretstore.Client
}

func (r mcpSecretResolver) GetSecret(ctx context.Context, name string) (string, error) {
	if r.secrets == nil {
		return "", fmt.Errorf("no secret store configured")
	}
	return r.secrets.GetSecret(ctx, name)
}

// buildApp wires every SPEC_FULL.md collaborator: conversation store,
// facts store opener, tool registry + builtin tools, provider manager,
// tool executor, composer, hook pipeline, dedupe store, message
// pipeline, and the one concrete chat-platform binding.
func buildApp(cfg appconfig.Config, logger *slog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.BrainFolder, 0o700); err != nil {
		return nil, fmt.Errorf("create brain folder: %w", err)
	}

	var secrets *secretstore.Client
	if cfg.SecretStoreURL != "" {
		secrets = secretstore.New(cfg.SecretStoreURL, cfg.SecretStoreToken, 0)
	}
	resolveSecret := func(value string) string {
		if secrets == nil {
			return value
		}
		resolved, err := secrets.ResolveSecretRef(context.Background(), value)
		if err != nil {
			logger.Warn("secret resolution failed, using raw value", "error", err)
			return value
		}
		return resolved
	}

	conv, err := conversation.NewManager(cfg.BrainFolder, "", logger)
	if err != nil {
		return nil, fmt.Errorf("open conversation manager: %w", err)
	}

	factsDir := cfg.BrainFolder
	openFacts := func(userID string) (*facts.Store, error) {
		return facts.NewStore(factsDir, userID)
	}

	toolStatePath := cfg.BrainFolder + "/.brainbridge-tool-state.json"
	toolState, err := tools.NewStateStore(toolStatePath)
	if err != nil {
		return nil, fmt.Errorf("open tool state: %w", err)
	}
	registry := tools.NewRegistry(toolState, logger)

	if err := registry.Register(tools.NewFactsTool(openFacts)); err != nil {
		return nil, fmt.Errorf("register facts tool: %w", err)
	}
	if cfg.EnableBrainSearch {
		semanticClient := search.NewSemanticClient(cfg.SearchURL, nil)
		if err := registry.Register(tools.NewBrainSearchTool(semanticClient)); err != nil {
			return nil, fmt.Errorf("register brain search tool: %w", err)
		}
	}
	if cfg.EnableWebSearch {
		webClient := search.NewTavilyClient(resolveSecret(cfg.WebSearchAPIKey), nil)
		if err := registry.Register(tools.NewWebSearchTool(webClient)); err != nil {
			return nil, fmt.Errorf("register web search tool: %w", err)
		}
	}

	mcpBridge := tools.NewMCPRegistryBridge(registry, logger)
	mcpMgr, err := loadMCPManager(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("load mcp config: %w", err)
	}
	mcpMgr.SetToolsetListener(mcpBridge)
	mcpMgr.SetSecretResolver(mcpSecretResolver{secrets: secrets})

	providerMgr := providers.NewManager(cfg.BrainFolder+"/.brainbridge-model-prefs.json", cfg.DefaultProvider, logger)
	useShim := true
	if anthropicKey := resolveSecret(cfg.AnthropicAPIKey); anthropicKey != "" {
		anthropicProvider, err := providers.NewAnthropicProvider(anthropicKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("init anthropic provider: %w", err)
		}
		providerMgr.Register("anthropic", anthropicProvider)
		useShim = false
	}
	if openaiKey := resolveSecret(cfg.OpenAIAPIKey); openaiKey != "" {
		providerMgr.Register("openai", providers.NewOpenAIProvider(openaiKey, cfg.Model))
	}

	toolExecutor := toolexec.NewToolExecutor(registry, logger)
	composer := compose.New(conv, openFacts, registry, toolExecutor, cfg.MaxContextTokens, logger)

	hookPipeline := hooks.NewPipeline(logger)
	hookPipeline.RegisterPre("intent_classifier", hooks.IntentClassifierPreHook)

	dedupeStore := dedupe.New(0)

	// Pipeline.Config needs a Platform, and SlackAdapter needs a
	// pipeline.Pipeline to route into — construct the adapter with no
	// pipeline yet, wire it as Platform, then attach the real pipeline.
	slackAdapter := platform.NewSlackAdapter(platform.Config{
		BotToken: cfg.SlackBotToken,
		AppToken: cfg.SlackAppToken,
	}, nil, useShim, logger)

	pipe := pipeline.New(pipeline.Config{
		Dedupe:       dedupeStore,
		HookPipeline: hookPipeline,
		Composer:     composer,
		Providers:    providerMgr,
		ToolExecutor: toolExecutor,
		Conversation: conv,
		Platform:     slackAdapter,
		Logger:       logger,
	})
	slackAdapter.SetPipeline(pipe)

	run := func(ctx context.Context) error {
		if err := mcpMgr.Start(ctx); err != nil {
			logger.Warn("mcp manager start error", "error", err)
		}
		stopWatch := watchMCPLocalConfig(ctx, cfg, mcpMgr, logger)

		if err := slackAdapter.Start(ctx); err != nil {
			stopWatch()
			return fmt.Errorf("start slack adapter: %w", err)
		}
		<-ctx.Done()
		stopWatch()
		stopCtx := context.Background()
		if err := slackAdapter.Stop(stopCtx); err != nil {
			logger.Warn("slack adapter stop error", "error", err)
		}
		if err := mcpMgr.Stop(); err != nil {
			logger.Warn("mcp manager stop error", "error", err)
		}
		pipe.Wait()
		return nil
	}

	return &app{dedupe: dedupeStore, run: run}, nil
}

// loadMCPManager reads the Tool Server Configuration (spec §4.1/§4.3): a
// git-tracked base file of MCP server definitions overlaid by a
// gitignored local-override file. A missing base file yields a disabled,
// empty manager rather than an error (mirroring mcp.LoadConfig itself).
func loadMCPManager(cfg appconfig.Config, logger *slog.Logger) (*mcp.Manager, error) {
	mcpCfg, err := mcp.LoadConfig(cfg.MCPConfigPath, cfg.MCPLocalConfigPath)
	if err != nil {
		return nil, err
	}
	return mcp.NewManager(mcpCfg, logger), nil
}

// watchMCPLocalConfig watches the directory holding the local MCP
// override file and reconnects on change, so editing
// mcp_servers.local.json takes effect without a service restart.
// Grounded on the teacher's internal/skills.Manager watch-loop idiom
// (watch the containing directory, debounce, then refresh). Returns a
// stop function; safe to call even if no watcher was started.
func watchMCPLocalConfig(ctx context.Context, cfg appconfig.Config, mgr *mcp.Manager, logger *slog.Logger) func() {
	localPath := cfg.MCPLocalConfigPath
	if localPath == "" && cfg.MCPConfigPath != "" {
		localPath = strings.TrimSuffix(cfg.MCPConfigPath, ".json") + ".local.json"
	}
	if localPath == "" {
		return func() {}
	}
	dir := filepath.Dir(localPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("mcp config watcher unavailable", "error", err)
		return func() {}
	}
	if err := watcher.Add(dir); err != nil {
		logger.Warn("mcp config watch failed", "dir", dir, "error", err)
		_ = watcher.Close()
		return func() {}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer watcher.Close()
		var timer *time.Timer
		reload := func() {
			mcpCfg, err := mcp.LoadConfig(cfg.MCPConfigPath, cfg.MCPLocalConfigPath)
			if err != nil {
				logger.Warn("mcp config reload failed", "error", err)
				return
			}
			if err := mgr.Stop(); err != nil {
				logger.Warn("mcp manager stop before reload failed", "error", err)
			}
			mgr.SetConfig(mcpCfg)
			if err := mgr.Start(watchCtx); err != nil {
				logger.Warn("mcp manager restart after reload failed", "error", err)
			}
		}
		for {
			select {
			case <-watchCtx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(localPath) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(500*time.Millisecond, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("mcp config watch error", "error", err)
			}
		}
	}()

	return cancel
}
