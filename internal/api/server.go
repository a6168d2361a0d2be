// Package api exposes the HTTP surface: the WebSocket endpoint, health,
// metrics and grpc-web.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gorilla/mux"
	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"nhooyr.io/websocket"

	"crewlink/infrastructure"
	"crewlink/internal/sessions"
)

// Sessions is the part of the session manager the HTTP layer drives.
type Sessions interface {
	Authenticate(ctx context.Context, token string) (*sessions.Conn, error)
	Release(c *sessions.Conn)
	Serve(ctx context.Context, c *sessions.Conn, t sessions.Transport) error
	ConnectionCount() int
}

type Options struct {
	AllowedOrigins     []string
	InsecureSkipVerify bool
	HandshakesPerSec   int
}

type Server struct {
	router   *mux.Router
	sessions Sessions
	grpcWeb  *grpcweb.WrappedGrpcServer
	logger   *slog.Logger
	opts     Options
}

// NewServer builds the router. grpcServer and gatherer are optional.
func NewServer(sessions Sessions, grpcServer *grpc.Server, gatherer prometheus.Gatherer, logger *slog.Logger, opts Options) *Server {
	if opts.HandshakesPerSec <= 0 {
		opts.HandshakesPerSec = 50
	}
	s := &Server{
		router:   mux.NewRouter(),
		sessions: sessions,
		logger:   logger,
		opts:     opts,
	}
	if grpcServer != nil {
		s.grpcWeb = grpcweb.WrapServer(grpcServer, grpcweb.WithOriginFunc(s.originAllowed))
	}
	s.setupRoutes(gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.Use(AccessLog(s.logger))
	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	ws := s.router.PathPrefix("/ws").Subrouter()
	ws.Use(RateLimit(s.opts.HandshakesPerSec))
	ws.HandleFunc("", s.serveWS).Methods(http.MethodGet)
}

// ServeHTTP routes grpc-web calls to the wrapped gRPC server and everything
// else to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.grpcWeb != nil && (s.grpcWeb.IsGrpcWebRequest(r) || s.grpcWeb.IsAcceptableGrpcCorsRequest(r)) {
		s.grpcWeb.ServeHTTP(w, r)
		return
	}
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.sessions.ConnectionCount(),
	})
}

// serveWS authenticates before upgrading, so a bad token is refused with a
// plain 401 and never reaches the session layer.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	if strings.TrimSpace(token) == "" {
		writeError(w, infrastructure.Authentication("authentication required", infrastructure.ErrMissingToken))
		return
	}

	c, err := s.sessions.Authenticate(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     s.opts.AllowedOrigins,
		InsecureSkipVerify: s.opts.InsecureSkipVerify,
	})
	if err != nil {
		// Accept has already written the response.
		s.sessions.Release(c)
		s.logger.DebugContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}

	err = s.sessions.Serve(r.Context(), c, newWSTransport(conn))
	switch {
	case err == nil, errors.Is(err, errClientClosed), errors.Is(err, context.Canceled):
	default:
		s.logger.InfoContext(r.Context(), "connection ended", slog.String("conn_id", c.ID), slog.Any("error", err))
	}
}

// originAllowed applies the WebSocket origin patterns to grpc-web callers.
func (s *Server) originAllowed(origin string) bool {
	if s.opts.InsecureSkipVerify {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, pattern := range s.opts.AllowedOrigins {
		if ok, _ := path.Match(strings.ToLower(pattern), host); ok {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(infrastructure.CodeOf(err)), map[string]string{
		"error": infrastructure.PublicMessage(err),
	})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
