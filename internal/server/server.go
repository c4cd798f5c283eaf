// Package server serves a remote.Store over the gridsync batch API.
//
// It is the backend an httpstore.Client talks to: one dataset per server,
// four batch endpoints plus a health check, JSON envelopes in and out, and
// optional JWT bearer authentication.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/gridsync/internal/remote"
)

const (
	// MaxBodyBytes bounds a batch request body.
	MaxBodyBytes = 10 << 20

	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout = 30 * time.Second
)

// Server exposes one dataset of a remote.Store over HTTP.
type Server struct {
	dataset string
	store   remote.Store
	codec   remote.Codec
	auth    *JWTAuth
	logger  *slog.Logger
	logReqs bool
}

// Option configures a Server.
type Option func(*Server)

// WithAuth requires a valid bearer token on every batch endpoint.
func WithAuth(a *JWTAuth) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithIDField sets the JSON field carrying row identifiers. Default: "id".
func WithIDField(field string) Option {
	return func(s *Server) {
		s.codec.IDField = field
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRequestLogging logs every request at info level.
func WithRequestLogging(enabled bool) Option {
	return func(s *Server) {
		s.logReqs = enabled
	}
}

// New creates a server for dataset backed by store.
func New(dataset string, store remote.Store, opts ...Option) *Server {
	s := &Server{
		dataset: dataset,
		store:   store,
		codec:   remote.Codec{IDField: "id"},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	prefix := "/" + s.dataset + "/"
	mux.Handle("GET "+prefix+"batch-read", s.protect(http.HandlerFunc(s.handleRead)))
	mux.Handle("POST "+prefix+"batch-create", s.protect(http.HandlerFunc(s.handleCreate)))
	mux.Handle("PUT "+prefix+"batch-update", s.protect(http.HandlerFunc(s.handleUpdate)))
	mux.Handle("DELETE "+prefix+"batch-delete", s.protect(http.HandlerFunc(s.handleDelete)))

	return loggingMiddleware(s.logReqs, mux, s.logger)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr, "dataset", s.dataset, "auth", s.auth != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) protect(h http.Handler) http.Handler {
	if s.auth == nil {
		return h
	}
	return s.auth.Middleware(s.dataset, h)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.writeStoreError(w, remote.OpReadAll, err)
		return
	}
	data, err := s.codec.MarshalRows(rows)
	if err != nil {
		s.writeStoreError(w, remote.OpReadAll, err)
		return
	}
	s.writeData(w, data)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	fields, err := s.codec.UnmarshalFields(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, remote.CodeInvalidRequest, err.Error())
		return
	}

	created, err := s.store.CreateMany(r.Context(), fields)
	if err != nil {
		s.writeStoreError(w, remote.OpCreateMany, err)
		return
	}
	data, err := s.codec.MarshalRows(created)
	if err != nil {
		s.writeStoreError(w, remote.OpCreateMany, err)
		return
	}
	s.logger.Debug("rows created", "dataset", s.dataset, "count", len(created))
	s.writeData(w, data)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	rows, err := s.codec.UnmarshalRows(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, remote.CodeInvalidRequest, err.Error())
		return
	}

	updated, err := s.store.UpdateMany(r.Context(), rows)
	if err != nil {
		s.writeStoreError(w, remote.OpUpdateMany, err)
		return
	}
	data, err := s.codec.MarshalRows(updated)
	if err != nil {
		s.writeStoreError(w, remote.OpUpdateMany, err)
		return
	}
	s.logger.Debug("rows updated", "dataset", s.dataset, "count", len(updated))
	s.writeData(w, data)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	ids, err := s.codec.UnmarshalIDs(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, remote.CodeInvalidRequest, err.Error())
		return
	}

	if err := s.store.DeleteMany(r.Context(), ids); err != nil {
		s.writeStoreError(w, remote.OpDeleteMany, err)
		return
	}
	s.logger.Debug("rows deleted", "dataset", s.dataset, "count", len(ids))
	s.writeData(w, nil)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, remote.CodeInvalidRequest, "read body: "+err.Error())
		return nil, false
	}
	return body, true
}

func (s *Server) writeData(w http.ResponseWriter, data []byte) {
	out, err := remote.MarshalEnvelope(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, remote.CodeInternal, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

// writeStoreError maps store errors to HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, op remote.Op, err error) {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		writeError(w, http.StatusNotFound, remote.CodeNotFound, err.Error())
	case errors.Is(err, remote.ErrInvalidBatch):
		writeError(w, http.StatusBadRequest, remote.CodeInvalidBatch, err.Error())
	default:
		s.logger.Error("store call failed", "op", op, "dataset", s.dataset, "error", err)
		writeError(w, http.StatusInternalServerError, remote.CodeInternal, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(remote.ErrorBody{Error: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, remote.CodeUnauthorized, message)
}
