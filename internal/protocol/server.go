// Package protocol serves the line-oriented command protocol over HTTP.
package protocol

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	kvstore "github.com/gabrielangelo/kv-store"
)

// maxCommandBytes bounds the request body; one command line never comes
// close to this.
const maxCommandBytes = 1 << 20

// ClientHeader carries the caller's client id. Requests without it get a
// fresh random id, so anonymous callers never share transaction state.
const ClientHeader = "X-Client-Name"

// Server exposes the command processor over HTTP. The request body is a
// single command line; the response body is its formatted outcome,
// text/plain, 200 on success and 400 on error.
type Server struct {
	addr      string
	processor *kvstore.Processor
	store     *kvstore.Store
	logger    kvstore.Logger

	httpServer *http.Server
}

// NewServer creates a protocol server.
func NewServer(addr string, processor *kvstore.Processor, store *kvstore.Store, logger kvstore.Logger) *Server {
	if logger == nil {
		logger = &kvstore.NoOpLogger{}
	}
	return &Server{
		addr:      addr,
		processor: processor,
		store:     store,
		logger:    logger,
	}
}

// Handler returns the HTTP handler: the command endpoint at /, a health
// probe at /healthz and Prometheus metrics at /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleCommand)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("kv-store listening", "addr", s.addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	if err != nil {
		http.Error(w, "unreadable request body", http.StatusBadRequest)
		return
	}

	client := r.Header.Get(ClientHeader)
	if client == "" {
		client = kvstore.NewClientID()
	}

	result, err := s.processor.Execute(r.Context(), string(body), client)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err != nil {
		if !kvstore.IsProtocolError(err) {
			s.logger.Error("command execution failed",
				"client", client,
				"error", err,
			)
		}
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, kvstore.FormatError(err))
		return
	}

	io.WriteString(w, kvstore.FormatSuccess(result))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	io.WriteString(w, "ok")
}
