package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/psdocs/doc-harvester/internal/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the harvester HTTP API",
		Long: `Starts the HTTP API for submitting crawl jobs, polling their progress,
and canceling them. The server runs until SIGINT or SIGTERM.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfgFile)
	if err != nil {
		return err
	}
	defer c.close()

	c.jobs.StartSweeper()
	defer c.jobs.Close()

	server := api.NewServer(c.jobs, c.logger.Named("api"), c.cfg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("http server started", zap.Int("port", c.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	c.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("server shutdown error", zap.Error(err))
	}
	c.logger.Info("shutdown complete")
	return nil
}
