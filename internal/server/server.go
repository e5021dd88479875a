package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hupe1980/agentproxy"
	"github.com/hupe1980/agentproxy/agent"
	"github.com/hupe1980/agentproxy/internal/catalog"
	"github.com/hupe1980/agentproxy/logging"
	"github.com/hupe1980/agentproxy/runner"
)

// Proxy is the part of agentproxy.Proxy the HTTP surface drives.
type Proxy interface {
	Chat(ctx context.Context, a *agent.Agent, conversationID, prompt string) (*agentproxy.ChatResult, error)
	Run(ctx context.Context, a *agent.Agent, prompt string) (*runner.Result, error)
}

// Options configures the HTTP server.
type Options struct {
	Port            int
	ShutdownTimeout time.Duration
	Logger          logging.Logger
}

// Server serves the proxy routes over HTTP.
type Server struct {
	proxy   Proxy
	catalog *catalog.Catalog
	opts    Options
	logger  logging.Logger
}

// New creates a Server answering with the agents of c through p.
func New(p Proxy, c *catalog.Catalog, optFns ...func(o *Options)) *Server {
	opts := Options{
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Server{
		proxy:   p,
		catalog: c,
		opts:    opts,
		logger:  opts.Logger,
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handle(s.handleRoot))
	mux.HandleFunc("POST /echo", s.handle(s.handleEcho))
	mux.HandleFunc("POST /chat", s.handle(s.handleChat))
	mux.HandleFunc("POST /pokemon", s.handle(s.handlePokemon))
	mux.HandleFunc("POST /support", s.handle(s.handleSupport))

	mux.HandleFunc("/", s.handle(func(http.ResponseWriter, *http.Request) error {
		return ErrRouteNotFound
	}))

	return s.withMiddleware(mux)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.opts.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server.listening", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server.shutdown", "timeout", s.opts.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
