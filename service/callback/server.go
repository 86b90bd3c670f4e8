// Package callback exposes the inbound HTTP surface of the approval
// gateway: JSON callbacks, one-click response links and a websocket
// event stream.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	gateway "github.com/viant/overseer/service/approval"
)

const (
	DefaultAddr = "127.0.0.1:8787"
	// maxBodySize bounds callback payloads.
	maxBodySize = 64 << 10
)

// Options configures the server.
type Options struct {
	Addr string
	// EventBuffer is the per-subscriber websocket buffer.
	EventBuffer int
}

// Server hosts the callback endpoints.
type Server struct {
	approvals  gateway.Service
	logger     *slog.Logger
	options    Options
	handler    http.Handler
	httpServer *http.Server
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server over the approval service.
func New(approvals gateway.Service, opts Options, options ...Option) *Server {
	if strings.TrimSpace(opts.Addr) == "" {
		opts.Addr = DefaultAddr
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	srv := &Server{approvals: approvals, logger: slog.Default(), options: opts}
	for _, option := range options {
		option(srv)
	}
	mux := http.NewServeMux()
	srv.setupRoutes(mux)
	srv.handler = srv.logMiddleware(mux)
	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

func (srv *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /approvals/{id}/response", srv.handleResponse)
	mux.HandleFunc("GET /approvals/{id}/respond", srv.handleRespond)
	mux.HandleFunc("GET /events", srv.handleEvents)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the root handler.
func (srv *Server) Handler() http.Handler { return srv.handler }

// Addr returns the listen address.
func (srv *Server) Addr() string { return srv.options.Addr }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", srv.options.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.options.Addr, err)
	}
	return srv.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (srv *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info("callback_server_started", "addr", listener.Addr().String())
		errCh <- srv.httpServer.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		srv.logger.Info("callback_server_stopped")
		return nil
	}
}
