// Package server exposes the repository registry and sync operations over
// an authenticated HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inovacc/gitkeeper/internal/gitsync"
	"github.com/inovacc/gitkeeper/internal/session"
	"github.com/inovacc/gitkeeper/internal/store"
)

// Cloner is the clone side of the sync engine; satisfied by
// *gitsync.Engine. Clone returns the canonical name and local path the
// repository record persists.
type Cloner interface {
	Clone(ctx context.Context, url string) (name, localPath string, err error)
}

// SyncRunner triggers sync attempts; satisfied by
// *orchestrator.Orchestrator.
type SyncRunner interface {
	SyncOne(ctx context.Context, url string) (gitsync.Outcome, error)
	SyncAll(ctx context.Context) (int, error)
}

// Server wires the HTTP routes to the store, session store, clone engine
// and orchestrator.
type Server struct {
	store    store.Store
	sessions *session.Store
	cloner   Cloner
	syncer   SyncRunner
	logger   *slog.Logger
}

// New creates a server over its collaborators.
func New(st store.Store, sessions *session.Store, cloner Cloner, syncer SyncRunner) *Server {
	return &Server{
		store:    st,
		sessions: sessions,
		cloner:   cloner,
		syncer:   syncer,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger for the server.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logger
	return s
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), s.corsMiddleware())

	// Deleting or syncing a repository addresses it by its URL-encoded
	// remote URL in the path; keep the raw path so encoded slashes
	// survive routing.
	r.UseRawPath = true
	r.UnescapePathValues = false

	api := r.Group("/api")

	api.POST("/auth/login", s.handleLogin)
	api.GET("/healthz", s.handleHealth)

	authed := api.Group("", s.authMiddleware())
	authed.POST("/auth/logout", s.handleLogout)
	authed.GET("/repositories", s.handleListRepositories)
	authed.POST("/repositories", s.handleAddRepository)
	authed.DELETE("/repositories/:url", s.handleRemoveRepository)
	authed.POST("/repositories/:url/sync", s.handleSyncRepository)
	authed.POST("/sync", s.handleSyncAll)

	return r
}

// Run serves HTTP until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	s.logger.Info("http server listening", "addr", addr)

	errCh := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	s.logger.Info("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("server forced to shutdown", "error", err)
		return err
	}

	return nil
}
