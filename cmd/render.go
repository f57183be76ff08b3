package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aure/fpdash/internal/api"
	"github.com/aure/fpdash/internal/query"
	"github.com/aure/fpdash/internal/render"
	"github.com/aure/fpdash/internal/view"
)

var renderTimeout time.Duration

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the dashboard once in the terminal",
	Long: `Mounts the dashboard, waits for both cards to settle and prints the
fingerprint table and the count plot. Cards still loading when --timeout
passes are printed as loading.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig("render")
		if err != nil {
			return err
		}

		client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout)
		cache := query.New(
			query.WithRetry(cfg.QueryRetries, cfg.QueryRetryDelay),
			query.WithLogger(logger),
		)
		defer cache.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), renderTimeout)
		defer cancel()
		return renderOnce(ctx, cache, client, os.Stdout, logger)
	},
}

// renderOnce writes the dashboard once every card has settled or ctx is done.
func renderOnce(ctx context.Context, cache *query.Cache, src view.Source, w io.Writer, logger *slog.Logger) error {
	dash, err := view.NewDashboard(cache, src, logger)
	if err != nil {
		return fmt.Errorf("mounting dashboard: %w", err)
	}
	defer dash.Close()

	for {
		changed := dash.Changed()
		page, err := dash.Render()
		if err != nil {
			return fmt.Errorf("rendering dashboard: %w", err)
		}
		if settled(page) {
			return render.Text(w, page)
		}

		select {
		case <-changed:
		case <-ctx.Done():
			logger.Warn("rendering before every card settled", "error", ctx.Err())
			return render.Text(w, page)
		}
	}
}

func settled(page view.Page) bool {
	for _, c := range page.Cards {
		if c.Loading() {
			return false
		}
	}
	return true
}

func init() {
	renderCmd.Flags().DurationVarP(&renderTimeout, "timeout", "t", 30*time.Second, "how long to wait for data")
	rootCmd.AddCommand(renderCmd)
}
