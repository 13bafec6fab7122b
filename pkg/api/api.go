// Package api serves the run index over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/atgtools/iorstat/pkg/api/indexer"
	"github.com/atgtools/iorstat/pkg/config"
	"github.com/atgtools/iorstat/pkg/store"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	store      store.Store
	indexer    indexer.Indexer
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a new API server over an already started store. idx
// may be nil when background indexing is disabled.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	st store.Store,
	idx indexer.Indexer,
) Server {
	return &server{
		log:     log.WithField("component", "api"),
		cfg:     cfg,
		store:   st,
		indexer: idx,
	}
}

// Start binds the listener, serves requests in the background and then
// starts the indexer.
func (s *server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	// The first indexing pass can be slow; the API is already reachable.
	if s.indexer != nil {
		if err := s.indexer.Start(ctx); err != nil {
			return fmt.Errorf("starting indexer: %w", err)
		}
	}

	return nil
}

// Stop gracefully shuts down the HTTP server and the indexer. The store
// is owned by the caller.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.indexer != nil {
		if err := s.indexer.Stop(); err != nil {
			s.log.WithError(err).Warn("Indexer stop error")
		}
	}

	s.log.Info("API server stopped")

	return nil
}
