// Command agentplaned is the bootstrap process: it loads a single
// config document, connects the bus and key-value store, wires the
// tool registry, policy engine, per-agent loops, and the gateway, then
// runs until a shutdown signal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentplane/core/internal/agent"
	"github.com/agentplane/core/internal/bus"
	"github.com/agentplane/core/internal/config"
	agentctx "github.com/agentplane/core/internal/context"
	"github.com/agentplane/core/internal/gateway"
	"github.com/agentplane/core/internal/hooks"
	"github.com/agentplane/core/internal/llm"
	"github.com/agentplane/core/internal/memory"
	"github.com/agentplane/core/internal/orchestrator"
	"github.com/agentplane/core/internal/policy"
	"github.com/agentplane/core/internal/session"
	"github.com/agentplane/core/internal/tools"
	"github.com/agentplane/core/pkg/models"
)

// Exit codes per the bootstrap contract.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitBusUnavail    = 2
	exitKVUnavail     = 3
	exitSignalTermina = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string

	root := &cobra.Command{
		Use:          "agentplaned",
		Short:        "Run the agentplane gateway, bus workers, and agent loops",
		SilenceUsage: true,
	}
	root.Flags().StringVar(&configPath, "config", "agentplane.yaml", "path to the configuration document")

	code := exitOK
	root.RunE = func(cmd *cobra.Command, args []string) error {
		var err error
		code, err = bootstrap(cmd.Context(), configPath)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		slog.Error("agentplaned exited with error", "error", err)
		if code == exitOK {
			code = exitConfigError
		}
	}
	return code
}

// bootstrap loads config, wires every subsystem, and blocks until ctx is
// cancelled (shutdown signal), tearing everything down in reverse order.
func bootstrap(ctx context.Context, configPath string) (int, error) {
	logger := slog.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		return exitConfigError, fmt.Errorf("load config: %w", err)
	}

	b, err := bus.Connect(bus.Config{
		URL:              firstNonEmpty(os.Getenv("NATS_URL"), "nats://127.0.0.1:4222"),
		IdempotencyTTL:   24 * time.Hour,
		LaneWatermark:    64,
		FailureThreshold: 5,
		FailureWindow:    30 * time.Second,
		Cooldown:         10 * time.Second,
	})
	if err != nil {
		return exitBusUnavail, fmt.Errorf("connect bus: %w", err)
	}
	defer b.Close()

	kv, err := bus.OpenNATSKV(b.JetStream(), "idempotency", 24*time.Hour)
	if err != nil {
		return exitKVUnavail, fmt.Errorf("open key-value store: %w", err)
	}
	b.SetIdempotencyStore(kv)

	hookRegistry := hooks.NewRegistry(logger)
	toolRegistry := tools.NewRegistry()
	resolver := policy.NewResolver(nil)

	var memStore *memory.Store
	if cfg.Memory != nil && cfg.Memory.Enabled {
		memStore, err = memory.NewStore(memory.StoreConfig{Path: cfg.Memory.Path, Dimension: cfg.Memory.Dimension})
		if err != nil {
			return exitConfigError, fmt.Errorf("open memory store: %w", err)
		}
		defer memStore.Close()

		var embedder memory.Embedder
		if cfg.Memory.Embeddings.Provider == "openai" {
			embedder, err = memory.NewOpenAIEmbedder(memory.OpenAIEmbedderConfig{
				APIKey:  cfg.Memory.Embeddings.APIKey,
				BaseURL: cfg.Memory.Embeddings.BaseURL,
				Model:   cfg.Memory.Embeddings.Model,
			})
			if err != nil {
				return exitConfigError, fmt.Errorf("init memory embedder: %w", err)
			}
		}

		flush := memory.NewFlushHandler(memStore, embedder, memory.DefaultChunkConfig(), logger)
		flush.Register(hookRegistry)

		engine := memory.NewEngine(memStore, memory.SearchConfig{
			VectorWeight: cfg.Memory.Search.VectorWeight,
			BM25Weight:   cfg.Memory.Search.BM25Weight,
			HalfLifeDays: cfg.Memory.Search.HalfLifeDays,
			MMRLambda:    cfg.Memory.Search.MMRLambda,
			CandidateK:   50,
		})
		if err := memory.RegisterTools(toolRegistry, memory.NewTools(memStore, engine, embedder)); err != nil {
			return exitConfigError, fmt.Errorf("register memory tools: %w", err)
		}
	}

	sessionStore := session.NewStore(cfg.Session.Directory)
	session.NewRecorder(sessionStore, logger).Register(hookRegistry)

	manager := agent.NewManager()
	orchRegistry := orchestrator.NewRegistry(manager, b)
	coordination := orchestrator.NewCoordinationTools(orchRegistry)
	if err := orchestrator.RegisterTools(toolRegistry, coordination); err != nil {
		return exitConfigError, fmt.Errorf("register coordination tools: %w", err)
	}

	globalPolicy := cfg.Tools.Global.AsPolicy()

	unsubscribes := make([]func() error, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		provider, err := buildProvider(cfg, a.Model)
		if err != nil {
			return exitConfigError, fmt.Errorf("agent %q: %w", a.ID, err)
		}

		eff := resolver.Resolve(globalPolicy, a.Policy.AsPolicy(), nil)
		executor := tools.NewExecutor(toolRegistry)
		executor.Guard = tools.ResultGuard{
			MaxOutputChars: cfg.Tools.Guard.MaxOutputChars,
			RedactPatterns: cfg.Tools.Guard.RedactPatterns,
		}

		compactor := agentctx.NewCompactor(agentctx.DefaultConfig(), agentctx.NewLLMSummarizer(provider), hookRegistry, nil)
		loop := agent.NewLoop(provider, executor, hookRegistry, compactor, eff, nil, agent.Config{MaxTurns: a.MaxTurns})

		if _, err := manager.Register(a.ID, a.SystemPrompt, loop); err != nil {
			return exitConfigError, fmt.Errorf("register agent %q: %w", a.ID, err)
		}

		toolDefs := toolRegistry.Definitions(func(name string) bool { return eff.IsAllowed(name) })
		worker := orchestrator.NewWorker(a.ID, b, manager, toolDefs, logger)
		unsubscribe, err := worker.Start(ctx)
		if err != nil {
			return exitConfigError, fmt.Errorf("start worker for %q: %w", a.ID, err)
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}

	server := gateway.NewServer(b, nil, cfg.Gateway.AllowAnonymous || cfg.Auth.AllowAnonymous, logger)
	unsubscribeResponses, err := b.Subscribe("_INBOX.>", "", func(env *models.Envelope) {
		if err := server.Router.Route(env); err != nil {
			logger.Warn("route response envelope", "error", err)
		}
	})
	if err != nil {
		return exitBusUnavail, fmt.Errorf("subscribe response inbox: %w", err)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		Handler: server,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	logger.Info("agentplaned started", "addr", httpServer.Addr, "agents", len(cfg.Agents))

	signalShutdown := false
	select {
	case <-ctx.Done():
		signalShutdown = true
	case err := <-serveErr:
		if err != nil {
			return exitBusUnavail, fmt.Errorf("gateway server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	server.Shutdown("agentplaned shutting down")
	_ = httpServer.Shutdown(shutdownCtx)

	for i := len(unsubscribes) - 1; i >= 0; i-- {
		_ = unsubscribes[i]()
	}
	_ = unsubscribeResponses()

	for _, agentID := range manager.AgentIDs() {
		if err := manager.Terminate(agentID); err != nil {
			logger.Warn("terminate agent during shutdown", "agentId", agentID, "error", err)
		}
	}

	if signalShutdown {
		return exitSignalTermina, nil
	}
	return exitOK, nil
}

func buildProvider(cfg *config.Config, modelName string) (llm.Provider, error) {
	m, ok := cfg.Models[modelName]
	if !ok {
		return nil, fmt.Errorf("no models entry for %q", modelName)
	}
	switch m.Provider {
	case "anthropic":
		return llm.NewAnthropicProvider(m.APIKey, m.Model), nil
	case "openai":
		return llm.NewOpenAIProvider(m.APIKey, m.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", m.Provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
