package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/inovacc/gitkeeper/internal/config"
	"github.com/inovacc/gitkeeper/internal/gitsync"
	"github.com/inovacc/gitkeeper/internal/orchestrator"
	"github.com/inovacc/gitkeeper/internal/scheduler"
	"github.com/inovacc/gitkeeper/internal/server"
	"github.com/inovacc/gitkeeper/internal/session"
	"github.com/inovacc/gitkeeper/internal/store/sqlite"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync service and HTTP API",
	Long: `Start the gitkeeper service: opens the registry database, schedules
the nightly sync sweep and serves the HTTP API until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}

	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	engine, err := gitsync.NewEngine(cfg.RepoRoot, cfg.SyncTimeout)
	if err != nil {
		return fmt.Errorf("failed to prepare repository root: %w", err)
	}
	engine.WithLogger(logger)

	orch := orchestrator.New(st, engine).WithLogger(logger)
	sessions := session.NewStore(cfg.SessionTTL)

	nightly := scheduler.NewNightly(cfg.SyncHour, func(ctx context.Context) {
		if failed, err := orch.SyncAll(ctx); err != nil {
			logger.Error("nightly sweep failed", "error", err)
		} else if failed > 0 {
			logger.Warn("nightly sweep finished with failures", "failed", failed)
		}
	}).WithLogger(logger)

	nightly.Start()
	defer nightly.Stop()

	logger.Info("gitkeeper starting",
		"db", cfg.DBPath,
		"repo_root", cfg.RepoRoot,
		"sync_hour", cfg.SyncHour)

	return server.New(st, sessions, engine, orch).WithLogger(logger).Run(cfg.Addr)
}
