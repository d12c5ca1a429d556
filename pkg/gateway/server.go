// Package gateway serves relays over HTTP: an index page, a Server-Sent
// Events stream, a chunked HTML run, a WebSocket feed, metrics and health.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/briansrls/the-circle/internal/config"
	"github.com/briansrls/the-circle/internal/observability"
	"github.com/briansrls/the-circle/internal/tracing"
	"github.com/briansrls/the-circle/pkg/agent"
	"github.com/briansrls/the-circle/pkg/relay"
	"github.com/briansrls/the-circle/pkg/render"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Web defaults for requests that omit rounds or message.
const (
	DefaultRounds  = 1
	DefaultMessage = "Hello everyone!"
)

// InsufficientAgentsMessage is the 400 body when the roster is too small.
const InsufficientAgentsMessage = "Not enough agents (need at least two)."

const shutdownTimeout = 5 * time.Second

// RosterLoader builds a fresh roster for one relay. Agents keep transcripts,
// so a roster is never shared between relays.
type RosterLoader func(ctx context.Context) ([]*agent.Agent, error)

// InlineRosterLoader builds a roster from agent entries sent by a viewer.
type InlineRosterLoader func(ctx context.Context, agents []config.AgentConfig) ([]*agent.Agent, error)

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Engine         *relay.Engine
	Roster         RosterLoader
	InlineRoster   InlineRosterLoader
	DefaultMessage string

	RequestsPerMinute   int
	Burst               int
	MaxConcurrentRelays int

	Logger zerolog.Logger
}

// Server is the relay HTTP server.
type Server struct {
	addr           string
	engine         *relay.Engine
	roster         RosterLoader
	inlineRoster   InlineRosterLoader
	defaultMessage string
	limiter        *RelayLimiter
	clients        *ClientRegistry
	upgrader       websocket.Upgrader
	logger         zerolog.Logger

	mu         sync.Mutex
	httpServer *http.Server

	stopOnce sync.Once
	stopErr  error
}

// NewServer creates a new Server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("relay engine is required")
	}
	if cfg.Roster == nil {
		return nil, fmt.Errorf("roster loader is required")
	}
	if cfg.DefaultMessage == "" {
		cfg.DefaultMessage = DefaultMessage
	}

	observability.EnsureRegistered()

	return &Server{
		addr:           net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		engine:         cfg.Engine,
		roster:         cfg.Roster,
		inlineRoster:   cfg.InlineRoster,
		defaultMessage: cfg.DefaultMessage,
		limiter:        NewRelayLimiter(cfg.RequestsPerMinute, cfg.Burst, cfg.MaxConcurrentRelays),
		clients:        NewClientRegistry(),
		logger:         cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/stream", s.handleStream)
	r.Post("/run", s.handleRun)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	return r
}

// ListenAndServe serves until ctx is cancelled or Stop is called, then shuts
// down. Request contexts derive from ctx, so running relays stop with it.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info().Str("addr", s.addr).Msg("Starting relay server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay server: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.Stop()
	})

	return g.Wait()
}

// Stop closes WebSocket clients and gracefully shuts the HTTP server down.
// Only the first call does any work.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.shutdown()
	})
	return s.stopErr
}

func (s *Server) shutdown() error {
	s.logger.Info().Msg("Shutting down relay server")

	if n := s.clients.CloseAll("server shutting down"); n > 0 {
		s.logger.Info().Int("clients", n).Msg("Closed socket clients")
	}
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Relay server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := tracing.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = withClientKey(ctx, remoteHost(r.RemoteAddr))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger := tracing.LoggerFromContext(ctx, s.logger)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(render.Index(DefaultRounds, s.defaultMessage)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	tracked, active := s.limiter.Stats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthStatus{
		Status:        "ok",
		ActiveRelays:  active,
		TrackedIPs:    tracked,
		SocketClients: s.clients.Count(),
		Clients:       s.clients.GetConnectedClients(),
	})
}

// parseRounds reads a rounds value, falling back to DefaultRounds when empty.
func parseRounds(raw string) (int, error) {
	if raw == "" {
		return DefaultRounds, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid rounds %q", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid rounds %q: %w", raw, relay.ErrInvalidRounds)
	}
	return n, nil
}

func (s *Server) message(raw string) string {
	if raw == "" {
		return s.defaultMessage
	}
	return raw
}

// admit applies the rate limit and concurrency cap. When it returns false the
// rejection has been written.
func (s *Server) admit(w http.ResponseWriter, r *http.Request) (func(), bool) {
	release, rejected := s.limiter.Acquire(clientKeyFromRequest(r))
	if rejected == "" {
		return release, true
	}

	observability.RecordRejected(string(rejected))
	status, msg := rejectionStatus(rejected)
	s.logger.Warn().Str("client", clientKeyFromRequest(r)).Str("reason", string(rejected)).Msg("Relay request rejected")
	http.Error(w, msg, status)
	return nil, false
}

func rejectionStatus(rejected Rejection) (int, string) {
	if rejected == RejectBusy {
		return http.StatusServiceUnavailable, "Too many relays running, try again later."
	}
	return http.StatusTooManyRequests, "Too many relay requests, slow down."
}

// startError maps a failure before the first event to a status and body.
func startError(err error) (int, string) {
	switch {
	case errors.Is(err, relay.ErrInsufficientAgents):
		return http.StatusBadRequest, InsufficientAgentsMessage
	case errors.Is(err, relay.ErrInvalidRounds):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Failed to start relay: " + err.Error()
	}
}

// loadRoster builds the roster for one request, writing a 500 on failure.
func (s *Server) loadRoster(w http.ResponseWriter, r *http.Request) ([]*agent.Agent, bool) {
	roster, err := s.roster(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build roster")
		http.Error(w, "Failed to load agents: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return roster, true
}
