package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pevans/lmdcrawl/api"
	"github.com/pevans/lmdcrawl/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		addr    string
		noStore bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve crawl operations and the dataset over HTTP",
		Long: `Serve starts the HTTP API:

  GET /api/v1/search?q=&start=&end=&sort=&pages=
  GET /api/v1/article?url=
  GET /api/v1/comments?url=&pages=
  GET /api/v1/articles/{id}
  GET /api/v1/articles/{id}/comments
  GET /api/v1/searches/{id}
  GET /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			serverOpts := []api.Option{
				api.WithLogger(a.log),
				api.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
			}
			if !noStore {
				s, err := a.openStore()
				if err != nil {
					return err
				}
				defer s.Close()
				serverOpts = append(serverOpts, api.WithStore(s))
			}

			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Server.Addr
			}
			if a.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(a.crawler, serverOpts...).SetupRouter(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return runServer(cmd.Context(), srv, a.log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8082", "listen address")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not open the dataset; crawled records are not kept")

	return cmd
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server", logger.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
