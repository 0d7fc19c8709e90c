package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/securityvision/analyzer/internal/api"
	"github.com/securityvision/analyzer/internal/jobs"
	"github.com/securityvision/analyzer/internal/monitoring"
	"github.com/securityvision/analyzer/internal/version"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload and report HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			an, cs, err := newAnalyzer(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer cs.Close()

			for _, dir := range []string{a.cfg.GetUploadDir(), a.cfg.GetOutputDir()} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
			reg := jobs.NewRegistry(an, jobs.Options{
				UploadDir: a.cfg.GetUploadDir(),
				OutputDir: a.cfg.GetOutputDir(),
			})
			srv := api.NewServer(reg, api.Options{
				MaxUploadBytes: a.cfg.GetMaxUploadBytes(),
				OutputDir:      a.cfg.GetOutputDir(),
			})
			defer srv.Close()

			server := &http.Server{
				Addr:              listen,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				monitoring.Logf("[Main] %s listening on %s", version.String(), listen)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}
			monitoring.Logf("[Main] shutting down HTTP server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				monitoring.Warnf("[Main] HTTP server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					monitoring.Warnf("[Main] HTTP server force close error: %v", err)
				}
			}
			if err := reg.Shutdown(shutdownCtx); err != nil {
				monitoring.Warnf("[Main] Jobs did not stop in time: %v", err)
			}
			monitoring.Logf("[Main] Graceful shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":5000", "Listen address")
	return cmd
}
