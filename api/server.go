// Package api exposes the docs assistant over HTTP: chat (blocking and SSE
// streaming), raw doc retrieval, on-demand sync and health probes.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"
)

// Pinger reports backend connectivity for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	service ChatService
	syncer  Syncer
	pinger  Pinger
	logger  *log.Logger

	addr string
	mux  *http.ServeMux

	// syncGate makes POST /docs-assistant/sync single-flight.
	syncGate sync.Mutex
}

type Options struct {
	Addr    string
	Service ChatService
	Syncer  Syncer
	Pinger  Pinger
	Logger  *log.Logger
}

func NewServer(opts Options) *Server {
	s := &Server{
		service: opts.Service,
		syncer:  opts.Syncer,
		pinger:  opts.Pinger,
		logger:  opts.Logger,
		addr:    opts.Addr,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/docs-assistant/chat", s.handleChat)
	s.mux.HandleFunc("/docs-assistant/stream", s.handleStream)
	s.mux.HandleFunc("/docs-assistant/docs", s.handleDocs)
	s.mux.HandleFunc("/docs-assistant/sync", s.handleSync)
	s.mux.HandleFunc("/liveness", s.handleLiveness)
	s.mux.HandleFunc("/readiness", s.handleReadiness)
	s.mux.HandleFunc("/openapi.yaml", s.handleOpenAPI)

	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: SSE responses stay open for the duration of a
		// generation.
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("api: listening on %s", s.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// logRequest records the request with its propagated request ID, if any.
func (s *Server) logRequest(r *http.Request) {
	if id := r.Header.Get("x-request-id"); id != "" {
		s.logger.Printf("api: %s %s request-id=%s", r.Method, r.URL.Path, id)
		return
	}
	s.logger.Printf("api: %s %s", r.Method, r.URL.Path)
}
