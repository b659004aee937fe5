package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/config"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/handlers"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/metrics"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/photogen"
)

func newServeCmd(configPath *string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow web server",
		Long: `Starts the PhotoGenSeo workflow server on the specified port.

The server exposes the session API the browser UI drives: product loading,
image selection, uploads, generation and CSV export.`,
		Example: `  # Start server on default port 8888
  photogenseo serve

  # Start server on custom port
  photogenseo serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.ListenPort = port
			}

			m := metrics.New()
			backend := photogen.NewClient(cfg.BackendURL, time.Duration(cfg.HTTPTimeout)).WithMetrics(m)
			handler, err := handlers.New(backend, cfg, m)
			if err != nil {
				return err
			}

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/sessions", handler.HandleCreateSession)
			mux.HandleFunc("GET /api/sessions", handler.HandleListSessions)
			mux.HandleFunc("GET /api/sessions/{id}", handler.HandleSessionDetail)
			mux.HandleFunc("DELETE /api/sessions/{id}", handler.HandleDeleteSession)
			mux.HandleFunc("POST /api/sessions/{id}/selection/toggle", handler.HandleToggleSelection)
			mux.HandleFunc("POST /api/sessions/{id}/uploads", handler.HandleUpload)
			mux.HandleFunc("POST /api/sessions/{id}/search-more", handler.HandleSearchMore)
			mux.HandleFunc("POST /api/sessions/{id}/generate", handler.HandleGenerate)
			mux.HandleFunc("POST /api/sessions/{id}/state", handler.HandleStateChange)
			mux.HandleFunc("GET /api/sessions/{id}/export", handler.HandleExport)
			mux.HandleFunc("GET /api/images", handler.HandleImageProxy)
			mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + cfg.ListenPort
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("PhotoGenSeo workflow server available", "addr", addr, "backend", cfg.BackendURL)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")

	return cmd
}
