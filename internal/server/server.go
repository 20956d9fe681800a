// Package server is the loopback HTTP server that receives OAuth redirects.
// It serves the two callback entry surfaces plus the landing and dashboard
// views the callback pages navigate to.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tonimelisma/drivebox/internal/api"
	"github.com/tonimelisma/drivebox/internal/callback"
	"github.com/tonimelisma/drivebox/internal/session"
)

const (
	// DefaultAddr is the loopback address registered as redirect target with
	// the backend.
	DefaultAddr = "127.0.0.1:3000"

	providerCallbackPath = "/auth/{provider}/callback"
	shutdownTimeout      = 5 * time.Second
)

// Sessions is the part of the session manager the callback surfaces drive.
type Sessions interface {
	Exchange(ctx context.Context, req callback.Request) (*session.Navigation, error)
	Fail(err error) *session.Navigation
	State() session.State
	Message() string
}

// Hints yields the persisted provider hint.
type Hints interface {
	Hint() (string, error)
}

// Roster is the provider registry as shown on the dashboard.
type Roster interface {
	Roster() []api.ConnectedProvider
	Authenticated() bool
}

// Server serves the callback surfaces and views.
type Server struct {
	normalizer *callback.Normalizer
	sessions   Sessions
	hints      Hints
	roster     Roster
	logger     *slog.Logger
	router     chi.Router

	mu    sync.Mutex
	navs  []*session.Navigation
	srv   *http.Server
	close sync.Once
}

// New builds a Server. A nil normalizer uses the default resolver chain.
func New(normalizer *callback.Normalizer, sessions Sessions, hints Hints, roster Roster, logger *slog.Logger) *Server {
	if normalizer == nil {
		normalizer = callback.NewNormalizer(nil)
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		normalizer: normalizer,
		sessions:   sessions,
		hints:      hints,
		roster:     roster,
		logger:     logger,
	}

	r := chi.NewRouter()
	s.Register(r)
	s.router = r

	return s
}

// Register mounts the routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get(providerCallbackPath, s.handleProviderCallback)
	r.Get(callback.GenericPath, s.handleGenericCallback)
	r.Get(session.LandingView, s.handleLanding)
	r.Get(session.DashboardView, s.handleDashboard)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start binds addr and serves in the background. It returns the bound
// address, which differs from addr when addr has port 0. Serve errors are
// sent on errCh.
func (s *Server) Start(ctx context.Context, addr string, errCh chan<- error) (string, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("server: binding %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: shutdownTimeout,
	}

	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	bound := listener.Addr().String()
	s.logger.Info("callback server listening", slog.String("addr", bound))

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: serving: %w", serveErr)
		}
	}()

	return bound, nil
}

// Close tears the views down: every pending navigation is canceled and the
// listener is shut down gracefully.
func (s *Server) Close() {
	s.close.Do(func() {
		s.mu.Lock()
		navs := s.navs
		s.navs = nil
		srv := s.srv
		s.mu.Unlock()

		for _, nav := range navs {
			if nav.Cancel() {
				s.logger.Debug("pending navigation canceled", slog.String("target", nav.Target()))
			}
		}

		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
		}
	})
}

// track takes ownership of nav so Close can cancel it.
func (s *Server) track(nav *session.Navigation) {
	if nav == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.navs = append(s.navs, nav)
}
