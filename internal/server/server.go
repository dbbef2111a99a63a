package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/handlers"
)

// Server wraps the HTTP server and its handler
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	listener   net.Listener
	addr       string
	log        *logrus.Entry
}

// Config holds server configuration
type Config struct {
	Addr string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
}

// New creates a server (does not start it)
func New(cfg Config, handler *handlers.Handler, logger *logrus.Logger) *Server {
	log := logger.WithField("component", "http")
	mux := setupRoutes(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      loggingMiddleware(log, corsMiddleware(mux)),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		handler: handler,
		addr:    cfg.Addr,
		log:     log,
	}
}

// Handler exposes the routed handler chain
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	s.log.WithField("addr", actualAddr).Info("[HTTP] Starting server")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("[HTTP] Server error")
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func setupRoutes(h *handlers.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.HandleHealthCheck)
	mux.HandleFunc("GET /api/v1/address-search", h.HandleAddressSearch)

	mux.HandleFunc("GET /api/v1/waypoints", h.HandleListWaypoints)
	mux.HandleFunc("POST /api/v1/waypoints", h.HandleCreateWaypoint)
	mux.HandleFunc("POST /api/v1/waypoints/reorder", h.HandleReorderWaypoints)
	mux.HandleFunc("POST /api/v1/waypoints/insert", h.HandleInsertWaypoint)
	mux.HandleFunc("POST /api/v1/waypoints/optimize", h.HandleOptimizeWaypoints)
	mux.HandleFunc("PATCH /api/v1/waypoints/{id}", h.HandleUpdateWaypoint)
	mux.HandleFunc("DELETE /api/v1/waypoints/{id}", h.HandleDeleteWaypoint)

	mux.HandleFunc("POST /api/v1/waypoints/{id}/search", h.HandleSearchText)
	mux.HandleFunc("GET /api/v1/waypoints/{id}/suggestions", h.HandleSuggestions)
	mux.HandleFunc("POST /api/v1/waypoints/{id}/accept", h.HandleAccept)
	mux.HandleFunc("POST /api/v1/waypoints/{id}/select", h.HandleSelect)
	mux.HandleFunc("POST /api/v1/waypoints/{id}/cancel", h.HandleCancelEdit)

	mux.HandleFunc("GET /api/v1/map", h.HandleGetMap)
	mux.HandleFunc("POST /api/v1/map/style", h.HandleSetStyle)
	mux.HandleFunc("POST /api/v1/map/drag", h.HandleDragMarker)
	mux.HandleFunc("POST /api/v1/map/context-menu", h.HandleContextMenu)
	mux.HandleFunc("POST /api/v1/map/move", h.HandleMoveViewport)

	return mux
}

func loggingMiddleware(log *logrus.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   lrw.statusCode,
			"duration": time.Since(start),
		}).Info("[HTTP] Request")
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only local front-ends may call the API
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
