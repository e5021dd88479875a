package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/agentproxy"
	"github.com/hupe1980/agentproxy/core"
	"github.com/hupe1980/agentproxy/internal/catalog"
	"github.com/hupe1980/agentproxy/internal/config"
	"github.com/hupe1980/agentproxy/internal/natsbus"
	"github.com/hupe1980/agentproxy/internal/server"
	"github.com/hupe1980/agentproxy/logging"
	"github.com/hupe1980/agentproxy/model"
	"github.com/hupe1980/agentproxy/model/anthropic"
	"github.com/hupe1980/agentproxy/model/openai"
	"github.com/hupe1980/agentproxy/runner"
	"github.com/hupe1980/agentproxy/session"
	"github.com/hupe1980/agentproxy/session/sqlite"
)

var version = "dev"

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "version":
		fmt.Printf("agentproxy %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "agentproxy: %v\n", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: agentproxy [command]\n\nCommands:\n  serve      Start the HTTP proxy (default)\n  version    Print version\n")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		Component: "agentproxy",
	})

	logger.Info("agentproxy.starting", "version", version)

	for _, w := range cfg.ApplyProviderFallbacks() {
		logger.Warn("config.provider_fallback", "detail", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer closeStore()
	logger.Info("store.initialized", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	var (
		events   runner.EventSink
		notifier catalog.EscalationNotifier
	)

	if cfg.NATS.Enabled {
		nc, closeBus, err := connectBus(cfg.NATS)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer closeBus()

		events = nc.EventSink()
		notifier = nc
		logger.Info("nats.connected", "url", cfg.NATS.URL, "port", cfg.NATS.Port)
	}

	cat, err := catalog.New(func(o *catalog.Options) {
		o.Models = cfg.Agents
		o.Notifier = notifier
	})
	if err != nil {
		return fmt.Errorf("build agents: %w", err)
	}

	proxy := agentproxy.New(newModel(cfg), func(o *agentproxy.Options) {
		o.Store = store
		o.MaxConcurrentRuns = cfg.Runner.MaxConcurrentRuns
		o.MaxRoundTrips = cfg.Runner.MaxRoundTrips
		o.ModelTimeout = cfg.Runner.ModelTimeout
		o.ToolTimeout = cfg.Runner.ToolTimeout
		o.MaxParallelTools = cfg.Runner.MaxParallelTools
		o.FailOnHandoffError = cfg.Runner.FailOnHandoffError
		o.Events = events
		o.Logger = logger
	})

	srv := server.New(proxy, cat, func(o *server.Options) {
		o.Port = cfg.Server.Port
		o.ShutdownTimeout = cfg.Server.ShutdownTimeout
		o.Logger = logger.WithComponent("server")
	})

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("agentproxy.stopped")

	return nil
}

// newModel builds one client per provider. Requests are routed by the model
// id the current agent asks for; anything unmatched goes to OpenAI.
func newModel(cfg *config.Config) model.Model {
	oa := openai.NewModel(func(o *openai.Options) {
		o.Model = cfg.OpenAI.Model
		o.APIKey = cfg.OpenAI.APIKey
		o.BaseURL = cfg.OpenAI.BaseURL
		o.MaxRetries = cfg.OpenAI.MaxRetries
	})

	router := model.NewRouter(oa)

	if cfg.Gemini.APIKey != "" {
		router.Route("gemini-", openai.NewModel(func(o *openai.Options) {
			o.Model = "gemini-2.5-flash"
			o.Provider = "gemini"
			o.APIKey = cfg.Gemini.APIKey
			o.BaseURL = cfg.Gemini.BaseURL
			o.MaxRetries = cfg.OpenAI.MaxRetries
		}))
	}

	if cfg.Anthropic.APIKey != "" {
		router.Route("claude-", anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.Anthropic.APIKey
			o.BaseURL = cfg.Anthropic.BaseURL
			o.MaxRetries = cfg.OpenAI.MaxRetries
		}))
	}

	return router
}

func openStore(cfg config.StoreConfig) (core.ConversationStore, func(), error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return session.NewInMemoryStore(), func() {}, nil
	}
}

// connectBus dials an external NATS server when a URL is configured and
// otherwise starts an embedded one.
func connectBus(cfg config.NATSConfig) (*natsbus.Client, func(), error) {
	if cfg.URL != "" {
		nc, err := natsbus.NewClientFromURL(cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		return nc, nc.Close, nil
	}

	bus, err := natsbus.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	nc, err := natsbus.NewClient(bus)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}

	return nc, func() {
		nc.Close()
		bus.Close()
	}, nil
}
