package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/edgelink/internal/infrastructure/config"
	"github.com/nerrad567/edgelink/internal/link"
	"github.com/nerrad567/edgelink/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds the link probe behind /api/v1/health.
const healthCheckTimeout = 2 * time.Second

// Logger is the logging surface the server needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// LinkSource is the view of the coordinator link the API reports on.
type LinkSource interface {
	HealthCheck(ctx context.Context) error
	Stats() link.Stats
}

// RelayStatsSource exposes relay counters.
type RelayStatsSource interface {
	Stats() relay.Stats
}

// BusSource reports local MQTT bus connectivity.
type BusSource interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger Logger
	Link   LinkSource

	// Optional.
	Relay    RelayStatsSource
	Bus      BusSource
	Gatherer prometheus.Gatherer

	SiteID  string
	Version string
}

// Server is the admin HTTP server.
type Server struct {
	cfg      config.APIConfig
	logger   Logger
	link     LinkSource
	relay    RelayStatsSource
	bus      BusSource
	gatherer prometheus.Gatherer
	siteID   string
	version  string

	startTime time.Time
	server    *http.Server
	listener  net.Listener
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Link == nil {
		return nil, fmt.Errorf("link is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		link:      deps.Link,
		relay:     deps.Relay,
		bus:       deps.Bus,
		gatherer:  deps.Gatherer,
		siteID:    deps.SiteID,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves in the background. The bind happens
// synchronously so a busy port is reported to the caller. Cancelling ctx
// shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info("API server listening", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		<-srvCtx.Done()
		if err := s.Close(); err != nil {
			s.logger.Error("API server shutdown failed", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server. It waits up to 10 seconds for
// in-flight requests to complete. Repeated calls return the first result.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("API server shutting down")
		if err := s.server.Shutdown(ctx); err != nil {
			s.closeErr = fmt.Errorf("shutting down API server: %w", err)
		}
	})
	return s.closeErr
}

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
