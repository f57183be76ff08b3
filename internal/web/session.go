package web

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aure/fpdash/internal/query"
	"github.com/aure/fpdash/internal/view"
)

const CookieName = "fpdash_session"

// session is one browser's dashboard: its own cache and mounted views.
type session struct {
	id       string
	cache    *query.Cache
	dash     *view.Dashboard
	lastSeen time.Time
	done     chan struct{}
}

func (s *session) close() {
	close(s.done)
	s.dash.Close()
	s.cache.Close()
}

type sessionFactory func() (*query.Cache, *view.Dashboard, error)

// Sessions tracks live sessions and expires them after ttl without a request.
type Sessions struct {
	mu      sync.Mutex
	byID    map[string]*session
	ttl     time.Duration
	factory sessionFactory
	logger  *slog.Logger
	onCount func(int)
}

func newSessions(ttl time.Duration, factory sessionFactory, logger *slog.Logger, onCount func(int)) *Sessions {
	if onCount == nil {
		onCount = func(int) {}
	}
	return &Sessions{
		byID:    make(map[string]*session),
		ttl:     ttl,
		factory: factory,
		logger:  logger,
		onCount: onCount,
	}
}

// acquire returns the session named by the request cookie, creating one (and
// setting the cookie) when the cookie is missing or the session has expired.
func (s *Sessions) acquire(w http.ResponseWriter, r *http.Request) (*session, error) {
	if c, err := r.Cookie(CookieName); err == nil {
		s.mu.Lock()
		sess, ok := s.byID[c.Value]
		if ok {
			sess.lastSeen = time.Now()
		}
		s.mu.Unlock()
		if ok {
			return sess, nil
		}
	}

	cache, dash, err := s.factory()
	if err != nil {
		return nil, err
	}
	sess := &session{
		id:       uuid.NewString(),
		cache:    cache,
		dash:     dash,
		lastSeen: time.Now(),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.byID[sess.id] = sess
	n := len(s.byID)
	s.mu.Unlock()
	s.onCount(n)

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("session started", "session", sess.id)
	return sess, nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Sweep closes sessions idle for longer than the ttl and returns how many it
// closed.
func (s *Sessions) Sweep() int {
	return s.sweep(time.Now())
}

func (s *Sessions) sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.byID {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.byID, id)
		}
	}
	n := len(s.byID)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
		s.logger.Info("session expired", "session", sess.id)
	}
	if len(expired) > 0 {
		s.onCount(n)
	}
	return len(expired)
}

func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.byID
	s.byID = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.close()
	}
	s.onCount(0)
}
