// Package charcount wires the character counter: the tool registry with its
// middleware stack, the HTTP and WebSocket entry points, health checks and
// graceful shutdown.
//
//	cfg, _ := config.Load("")
//	app, _ := charcount.New(cfg, logger)
//	app.Serve(ctx)
package charcount

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/charcount/config"
	"github.com/felixgeelhaar/charcount/host"
	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/server"
	"github.com/felixgeelhaar/charcount/tools"
	"github.com/felixgeelhaar/charcount/transport"
)

// Name is the server name reported during initialization.
const Name = "char-counter-server"

// Instructions are returned to clients during initialization.
const Instructions = "Call countCharacters with a text to learn how many characters it has."

// Version is the server version. Release builds set it with -ldflags.
var Version = "1.0.0"

// Routes served by Handler.
const (
	PathMCP       = "/mcp"
	PathEdge      = "/mcp-app"
	PathWebSocket = "/mcp/ws"
	PathHealth    = "/health"
)

// Option configures an App.
type Option func(*App)

// WithTracerProvider sets the tracer provider for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *App) {
		a.otelOpts = append(a.otelOpts, middleware.WithTracerProvider(tp))
	}
}

// WithMeterProvider sets the meter provider for request metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(a *App) {
		a.otelOpts = append(a.otelOpts, middleware.WithMeterProvider(mp))
	}
}

// App is a configured character counter server.
type App struct {
	cfg      *config.Config
	logger   middleware.Logger
	otelOpts []middleware.OTelOption

	server   *server.Server
	shutdown *transport.ShutdownManager
	handler  http.Handler
}

// New builds the registry, the entry points and the root router.
func New(cfg *config.Config, logger middleware.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = middleware.NopLogger{}
	}

	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	srv, err := server.New(server.Info{Name: Name, Version: Version},
		server.WithInstructions(Instructions),
		server.WithTools(tools.NewCountCharacters(logger)),
		server.WithMiddleware(a.stack()...),
	)
	if err != nil {
		return nil, fmt.Errorf("build server: %w", err)
	}
	a.server = srv

	a.shutdown = transport.NewShutdownManager(transport.ShutdownConfig{
		Timeout:            cfg.ShutdownTimeout,
		OnDrainStart:       func() { logger.Info("draining requests") },
		OnShutdownComplete: a.logShutdown,
	})

	a.handler = a.routes()
	return a, nil
}

// stack is the registry middleware, outermost first.
func (a *App) stack() []middleware.Middleware {
	return middleware.Stack(middleware.StackConfig{
		Logger:         a.logger,
		Timeout:        a.cfg.RequestTimeout,
		MaxParamsBytes: a.cfg.MaxBodyBytes,
		RateLimit:      a.cfg.RateLimit,
		RateBurst:      a.cfg.RateBurst,
		OTel:           append([]middleware.OTelOption{middleware.WithOTelServiceName(Name)}, a.otelOpts...),
	})
}

func (a *App) routes() http.Handler {
	cors := transport.DefaultCORSConfig()
	cors.AllowOrigins = a.cfg.CORSOrigins

	common := []host.Option{
		host.WithLogger(a.logger),
		host.WithCORS(cors),
		host.WithMaxBodyBytes(a.cfg.MaxBodyBytes),
		host.WithShutdownManager(a.shutdown),
	}
	// Node-style: stateless, plain JSON replies, GET streams stay open.
	node := host.NewAdapter(a.server, append(common,
		host.WithName("node"),
		host.WithTransportOptions(transport.StreamableOptions{JSONResponse: true, HoldStream: true}),
	)...)
	// Edge-style: random session ids and event-stream replies.
	edge := host.NewAdapter(a.server, append(common,
		host.WithName("edge"),
		host.WithTransportOptions(transport.StreamableOptions{SessionIDGenerator: transport.NewSessionID}),
	)...)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	r.Handle(PathMCP, node)
	r.Mount(PathEdge, host.EdgeRouter(edge))
	if a.cfg.WebSocket {
		r.Get(PathWebSocket, host.WebSocketHandler(node).ServeHTTP)
	}
	r.Handle(PathHealth, transport.CORSHandler(cors, http.HandlerFunc(a.health)))
	return r
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	status, body := http.StatusOK, "ok"
	if a.shutdown.IsDraining() {
		status, body = http.StatusServiceUnavailable, "draining"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": body})
}

func (a *App) logShutdown(err error) {
	if err != nil {
		a.logger.Warn("drain incomplete", middleware.F("error", err.Error()),
			middleware.F("in_flight", a.shutdown.InFlightRequests()))
		return
	}
	a.logger.Info("drain complete")
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Server returns the tool registry.
func (a *App) Server() *server.Server { return a.server }

// ShutdownManager returns the manager that drains requests on shutdown.
func (a *App) ShutdownManager() *transport.ShutdownManager { return a.shutdown }

// Serve listens on the configured address until ctx is done, then drains.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done. Shutdown first drains
// in-flight requests, rejecting new ones with 503, then stops the HTTP
// server.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info("server listening", middleware.F("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	drainErr := a.shutdown.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("shutdown: %w", errors.Join(drainErr, err))
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return drainErr
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.ShutdownTimeout <= 0 {
		return transport.DefaultShutdownConfig().Timeout
	}
	return a.cfg.ShutdownTimeout
}
