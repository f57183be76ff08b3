package cmd

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
	"golang.org/x/sync/errgroup"

	"github.com/aure/fpdash/internal/api"
	"github.com/aure/fpdash/internal/query"
	"github.com/aure/fpdash/internal/web"
)

var serveAddr string

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig("serve")
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.ServerAddr = serveAddr
		}

		client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout)
		srv := web.New(web.Options{
			Source:      client,
			Logger:      logger,
			SessionTTL:  cfg.SessionTTL,
			WaitTimeout: cfg.WaitTimeout,
			CacheOptions: []query.Option{
				query.WithCapacity(cfg.QueryCapacity),
				query.WithRetry(cfg.QueryRetries, cfg.QueryRetryDelay),
			},
		})

		httpServer := &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(ctx)
		})
		g.Go(func() error {
			fmt.Printf("Starting server at http://%s (API %s)\n", cfg.ServerAddr, client.BaseURL())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			logger.Info("shutting down")
			return httpServer.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "address to listen on (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
