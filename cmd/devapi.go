package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aure/fpdash/internal/db"
)

var devapiAddr string
var devapiSeed int

var devapiCmd = &cobra.Command{
	Use:   "devapi",
	Short: "Run a local fingerprint API backed by sqlite",
	Long: `Serves /api/fingerprints, /api/fingerprints/count and /api/health from a
local sqlite database so the dashboard can run without the real service.
POST /api/fingerprints with {"input": "..."} records a fingerprint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig("devapi")
		if err != nil {
			return err
		}
		if devapiAddr != "" {
			cfg.DevAPIAddr = devapiAddr
		}

		database, err := db.New(cfg.DatabasePath, cfg.MaxRows)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		if devapiSeed > 0 {
			if err := seedFingerprints(database, devapiSeed, time.Now()); err != nil {
				return err
			}
			logger.Info("seeded fingerprints", "count", devapiSeed)
		}

		httpServer := &http.Server{
			Addr:              cfg.DevAPIAddr,
			Handler:           newDevAPIHandler(database, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			fmt.Printf("Fingerprint API running at http://%s/api (database %s)\n", cfg.DevAPIAddr, database.Path())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

type devAPI struct {
	db     *db.DB
	logger *slog.Logger
}

func newDevAPIHandler(database *db.DB, logger *slog.Logger) http.Handler {
	s := &devAPI{db: database, logger: logger}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/fingerprints", s.listFingerprints).Methods(http.MethodGet)
	api.HandleFunc("/fingerprints", s.createFingerprint).Methods(http.MethodPost)
	api.HandleFunc("/fingerprints/count", s.listFingerprintCounts).Methods(http.MethodGet)
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

func (s *devAPI) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *devAPI) listFingerprints(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = db.DefaultPageLimit
	}

	result, err := s.db.ListFingerprints(page, limit)
	if err != nil {
		s.logger.Error("listing fingerprints", "error", err)
		http.Error(w, "Failed to query fingerprints", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, result)
}

func (s *devAPI) listFingerprintCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.IntervalCounts()
	if err != nil {
		s.logger.Error("counting fingerprints", "error", err)
		http.Error(w, "Failed to query fingerprint counts", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, counts)
}

func (s *devAPI) createFingerprint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		http.Error(w, "input is required", http.StatusBadRequest)
		return
	}

	if err := s.db.InsertFingerprint(req.Input, time.Now()); err != nil {
		s.logger.Error("storing fingerprint", "error", err)
		http.Error(w, "Failed to store fingerprint", http.StatusInternalServerError)
		return
	}
	s.logger.Info("stored fingerprint", "input", req.Input)
	w.WriteHeader(http.StatusCreated)
}

func (s *devAPI) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", "error", err)
	}
}

// seedFingerprints inserts n records spread one per two seconds up to now.
func seedFingerprints(database *db.DB, n int, now time.Time) error {
	for i := 0; i < n; i++ {
		at := now.Add(-time.Duration(n-1-i) * 2 * time.Second)
		input := "seed-" + uuid.NewString()[:8]
		if err := database.InsertFingerprint(input, at); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
	}
	return nil
}

func init() {
	devapiCmd.Flags().StringVarP(&devapiAddr, "addr", "a", "", "address to listen on (overrides devapi.addr)")
	devapiCmd.Flags().IntVar(&devapiSeed, "seed", 0, "insert N fake fingerprints on start")
	rootCmd.AddCommand(devapiCmd)
}
