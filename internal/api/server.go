// Package api implements the keeper's external HTTP surface (§6 api_port):
// an order/slice status surface, an order cancellation endpoint, and a
// health check, serving the
// same operational role the teacher's dashboard server did for a running
// market maker, narrowed to this keeper's domain — order lifecycle, not
// positions or P&L.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/1edge/keeper/internal/store"
	"github.com/1edge/keeper/internal/watcher"
)

// Server runs the keeper's status/health HTTP surface.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer builds a Server bound to port, backed by st for order/slice/
// event lookups and registry for cancellation.
func NewServer(port int, st *store.Store, registry *watcher.Registry, logger *slog.Logger) *Server {
	h := &handlers{store: st, registry: registry, logger: logger.With("component", "api-handlers")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /orders", h.handleListOrders)
	mux.HandleFunc("GET /orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.handleCancelOrder)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With("component", "api-server"),
	}
}

// Start blocks serving HTTP until Stop is called; returns nil on a clean
// shutdown via http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("api server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
