// Package web serves the dashboard over HTTP with htmx partials.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aure/fpdash/internal/logging"
	"github.com/aure/fpdash/internal/query"
	"github.com/aure/fpdash/internal/render"
	"github.com/aure/fpdash/internal/view"
)

const (
	DefaultWaitTimeout = 25 * time.Second
	DefaultSessionTTL  = 30 * time.Minute
)

type Options struct {
	Source       view.Source
	Logger       *slog.Logger
	Registry     *prometheus.Registry
	SessionTTL   time.Duration
	WaitTimeout  time.Duration
	CacheOptions []query.Option
}

type Server struct {
	router      *mux.Router
	sessions    *Sessions
	registry    *prometheus.Registry
	waitTimeout time.Duration
	logger      *slog.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}

	metrics := query.NewMetrics(opts.Registry)
	sessionGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fpdash_sessions",
		Help: "Live dashboard sessions.",
	})
	opts.Registry.MustRegister(sessionGauge)

	cacheOpts := append([]query.Option{
		query.WithMetrics(metrics),
		query.WithLogger(opts.Logger.With("component", "query")),
	}, opts.CacheOptions...)

	factory := func() (*query.Cache, *view.Dashboard, error) {
		cache := query.New(cacheOpts...)
		dash, err := view.NewDashboard(cache, opts.Source, opts.Logger.With("component", "view"))
		if err != nil {
			cache.Close()
			return nil, nil, err
		}
		return cache, dash, nil
	}

	s := &Server{
		sessions: newSessions(opts.SessionTTL, factory, opts.Logger, func(n int) {
			sessionGauge.Set(float64(n))
		}),
		registry:    opts.Registry,
		waitTimeout: opts.WaitTimeout,
		logger:      opts.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/partials/{card}", s.handlePartial).Methods(http.MethodGet)
	r.HandleFunc("/cards/"+view.CardFingerprints+"/rows/{row:[0-9]+}/activate", s.handleActivate).Methods(http.MethodPost)
	r.HandleFunc("/cards/"+view.CardFingerprints+"/remount", s.handleRemount).Methods(http.MethodPost)
	r.HandleFunc("/cards/{card}/refetch", s.handleRefetch).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// Run sweeps expired sessions until ctx is done, then closes every session.
func (s *Server) Run(ctx context.Context) error {
	interval := s.sessions.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.sessions.CloseAll()
			return nil
		case <-ticker.C:
			s.sessions.Sweep()
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	page, err := sess.dash.Render()
	if err != nil {
		s.fail(w, "rendering dashboard", err)
		return
	}

	var buf bytes.Buffer
	if err := render.HTMLPage(&buf, page); err != nil {
		s.fail(w, "writing dashboard", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) handlePartial(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["card"]
	card, err := s.awaitCard(r.Context(), sess, id, r.URL.Query().Get("wait") == "1")
	s.writeCard(w, card, err)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	row, err := strconv.Atoi(mux.Vars(r)["row"])
	if err != nil {
		http.Error(w, "invalid row", http.StatusBadRequest)
		return
	}

	switch err := sess.dash.ActivateRow(row); {
	case errors.Is(err, view.ErrNoSuchRow):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, view.ErrNotLoaded):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		s.fail(w, "activating row", err)
		return
	}

	card, err := sess.dash.RenderCard(view.CardFingerprints)
	s.writeCard(w, card, err)
}

func (s *Server) handleRemount(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	if err := sess.dash.Remount(); err != nil {
		s.fail(w, "remounting table", err)
		return
	}
	card, err := sess.dash.RenderCard(view.CardFingerprints)
	s.writeCard(w, card, err)
}

func (s *Server) handleRefetch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["card"]
	if err := sess.dash.Refetch(id); err != nil {
		s.writeCard(w, view.Card{}, err)
		return
	}
	card, err := sess.dash.RenderCard(id)
	s.writeCard(w, card, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

// awaitCard renders card id. With wait set, a loading card is held until the
// dashboard changes, the wait timeout passes or the request goes away.
func (s *Server) awaitCard(ctx context.Context, sess *session, id string, wait bool) (view.Card, error) {
	timer := time.NewTimer(s.waitTimeout)
	defer timer.Stop()

	for {
		changed := sess.dash.Changed()
		card, err := sess.dash.RenderCard(id)
		if err != nil || !wait || !card.Loading() {
			return card, err
		}

		select {
		case <-changed:
		case <-timer.C:
			return card, nil
		case <-sess.done:
			return card, nil
		case <-ctx.Done():
			return card, ctx.Err()
		}
	}
}

func (s *Server) writeCard(w http.ResponseWriter, card view.Card, err error) {
	switch {
	case errors.Is(err, view.ErrUnknownCard):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		s.fail(w, "rendering card", err)
		return
	}

	var buf bytes.Buffer
	if err := render.HTMLCard(&buf, card); err != nil {
		s.fail(w, "writing card", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, err := s.sessions.acquire(w, r)
	if err != nil {
		s.fail(w, "starting session", err)
		return nil, false
	}
	return sess, true
}

func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	s.logger.Error(what, "error", err)
	http.Error(w, what+" failed", http.StatusInternalServerError)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
