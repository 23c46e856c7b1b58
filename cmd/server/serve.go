package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/handler"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/router"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the JSON HTTP API. The database is migrated on startup.

Examples:
  # Use defaults (SQLite at data/recovery.db, listen on :8080)
  recoveryd serve

  # Use a config file
  recoveryd serve --config configs/config.example.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.close()

	gin.SetMode(deps.cfg.GinMode)
	api := handler.NewAPI(deps.db, handler.Options{
		Clock:             deps.clock,
		Levels:            deps.levels,
		TaskCountCategory: deps.cfg.Achievements.TaskCountCategory,
		Logger:            deps.log,
	})

	srv := &http.Server{
		Addr:              deps.cfg.ListenAddr,
		Handler:           router.SetupRouter(api, deps.log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		deps.log.Info("http server listening", "addr", srv.Addr, "timezone", deps.cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	deps.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
