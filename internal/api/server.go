package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/onehud/registrar/internal/infrastructure/config"
	"github.com/onehud/registrar/internal/infrastructure/logging"
	"github.com/onehud/registrar/internal/ledger"
	"github.com/onehud/registrar/internal/registration"
	"github.com/onehud/registrar/internal/serialport"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Registrar is the part of registration.Controller the server drives.
type Registrar interface {
	Submit(ctx context.Context, email string) error
	Snapshot() registration.Snapshot
	OnStatus(fn registration.StatusFunc) func()
}

// HealthChecker is implemented by the optional infrastructure clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Registrar Registrar

	// Ports lists serial ports; serialport.ListPorts when nil.
	Ports func() ([]serialport.PortInfo, error)

	// Receipts is optional; /receipts answers 404 without it.
	Receipts ledger.Repository

	// Metrics is optional; mounted at /metrics.
	Metrics http.Handler

	// Page is optional; mounted at /.
	Page http.Handler

	// Checks are reported by /health, keyed by component name.
	Checks map[string]HealthChecker

	Version string
}

// Server is the local HTTP front end.
//
// It is created with New, started with Start and stopped with Close.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	registrar Registrar
	ports     func() ([]serialport.PortInfo, error)
	receipts  ledger.Repository
	metrics   http.Handler
	page      http.Handler
	checks    map[string]HealthChecker
	version   string
	startTime time.Time

	hub    *Hub
	server *http.Server

	mu          sync.Mutex
	addr        net.Addr
	cancel      context.CancelFunc
	unsubscribe func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registrar == nil {
		return nil, fmt.Errorf("registrar is required")
	}
	ports := deps.Ports
	if ports == nil {
		ports = serialport.ListPorts
	}

	logger := deps.Logger.With("component", "api")
	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    logger,
		registrar: deps.Registrar,
		ports:     ports,
		receipts:  deps.Receipts,
		metrics:   deps.Metrics,
		page:      deps.Page,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, logger),
	}, nil
}

// Handler returns the router. Start uses it; tests may mount it directly.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener, relays status transitions to websocket clients
// and serves in a background goroutine until Close.
//
// Returns:
//   - error: If the address cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	unsubscribe := s.registrar.OnStatus(func(registration.Status, registration.State) {
		s.hub.Publish(s.registrar.Snapshot())
	})

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.cancel = cancel
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete. A
// registration still running is cancelled with its request.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
