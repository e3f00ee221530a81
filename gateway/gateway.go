// Package gateway exposes the bridge over HTTP: synchronous chat requests,
// one-way pings, health, and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentwire/agentwire-go/bridge"
	"github.com/agentwire/agentwire-go/health"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Bridge is the forwarding surface the gateway needs.
type Bridge interface {
	Forward(ctx context.Context, text string, timeout time.Duration) (string, error)
	Notify(ctx context.Context, text string) error
}

// Request is the body of POST /chat and POST /ping.
type Request struct {
	Text string `json:"text"`
}

// Response is the body of every gateway reply. Timestamp is unix seconds.
type Response struct {
	Timestamp    int64  `json:"timestamp"`
	Text         string `json:"text"`
	AgentAddress string `json:"agent_address"`
}

// Server is the HTTP gateway in front of a bridge.
type Server struct {
	bridge         Bridge
	address        string
	requestTimeout time.Duration
	registry       *health.Registry
	logger         *slog.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithRequestTimeout sets how long /chat waits for a reply.
func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.requestTimeout = timeout
	}
}

// WithHealthRegistry sets the health check registry backing /health.
func WithHealthRegistry(registry *health.Registry) ServerOption {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a gateway answering as the given agent address.
func NewServer(b Bridge, address string, options ...ServerOption) (*Server, error) {
	if b == nil {
		return nil, fmt.Errorf("bridge cannot be nil")
	}
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	s := &Server{
		bridge:         b,
		address:        address,
		requestTimeout: bridge.DefaultTimeout,
		registry:       health.NewRegistry(),
		logger:         slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Post("/chat", s.handleChat)
	r.Post("/ping", s.handlePing)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// handleChat forwards the text to the remote agent and blocks until a reply
// arrives or the timeout fires. Timeouts and transport failures still answer
// 200 with the error in the text; callers treat the gateway as a chat peer,
// not as an HTTP proxy for the agent's availability.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	s.logger.Info("forwarding chat request", "requestId", middleware.GetReqID(r.Context()))

	text, err := s.bridge.Forward(r.Context(), req.Text, s.requestTimeout)
	if err != nil {
		var timeoutErr *bridge.TimeoutError
		if errors.As(err, &timeoutErr) {
			s.respond(w, http.StatusOK, fmt.Sprintf("Timeout: No response received from agent within %s", timeoutErr.Timeout))
			return
		}
		s.logger.Error("chat request failed", "error", err)
		s.respond(w, http.StatusOK, fmt.Sprintf("Error: %s", err))
		return
	}

	s.respond(w, http.StatusOK, text)
}

// handlePing sends a one-way message and returns immediately.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	err := s.bridge.Notify(r.Context(), fmt.Sprintf("Ping from bridge agent: %s", req.Text))
	if err != nil {
		s.logger.Error("ping failed", "error", err)
		s.respond(w, http.StatusOK, fmt.Sprintf("Failed to ping agent: %s", err))
		return
	}

	s.respond(w, http.StatusOK, fmt.Sprintf("Ping message sent to agent: %s", req.Text))
}

// handleHealth runs the registered checks. An unhealthy report answers 503;
// healthy and degraded answer 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.registry.Check(r.Context())

	status := http.StatusOK
	text := "Bridge agent is healthy and ready to forward requests"
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
		text = "Bridge agent is unhealthy"
	}

	s.writeJSON(w, status, struct {
		Response
		Status health.Status        `json:"status"`
		Checks []health.CheckResult `json:"checks,omitempty"`
	}{
		Response: Response{
			Timestamp:    time.Now().Unix(),
			Text:         text,
			AgentAddress: s.address,
		},
		Status: report.Status,
		Checks: report.Checks,
	})
}

// decodeRequest parses the request body. Missing or empty text is the only
// client error the gateway reports as 400.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	if req.Text == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return req, false
	}
	return req, true
}

func (s *Server) respond(w http.ResponseWriter, status int, text string) {
	s.writeJSON(w, status, Response{
		Timestamp:    time.Now().Unix(),
		Text:         text,
		AgentAddress: s.address,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
