package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/tonimelisma/drivebox/internal/api"
	"github.com/tonimelisma/drivebox/internal/callback"
	"github.com/tonimelisma/drivebox/internal/provider"
)

// ErrExchangeFailed is returned when the backend rejects the authorization
// code or answers without a credential.
var ErrExchangeFailed = errors.New("session: exchange failed")

// Facade is the subset of the backend client the Manager drives. Both calls
// are made without the session credential.
type Facade interface {
	AuthorizeURL(ctx context.Context, p provider.ID) (string, error)
	HandleCallback(ctx context.Context, p provider.ID, code, state string) (*api.AuthResponse, error)
}

// Roster is the provider registry as seen by the Manager.
type Roster interface {
	Refresh(ctx context.Context) error
	Clear()
	Authenticated() bool
}

// Selections is the selection set manager as seen by the Manager.
type Selections interface {
	PurgeAll()
}

// Manager is the authentication state machine.
type Manager struct {
	session    *Session
	facade     Facade
	roster     Roster
	selections Selections
	nav        Navigator
	logger     *slog.Logger
	schedule   scheduleFunc

	mu      sync.Mutex
	state   State
	message string
	user    *api.User
}

// NewManager wires a Manager. nav receives both the external authorize URL
// and the delayed in-app navigations.
func NewManager(s *Session, facade Facade, roster Roster, selections Selections, nav Navigator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		session:    s,
		facade:     facade,
		roster:     roster,
		selections: selections,
		nav:        nav,
		logger:     logger,
		schedule:   afterFunc,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Message returns the message recorded by the last failure, if any.
func (m *Manager) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.message
}

// User returns the user reported by the last successful exchange.
func (m *Manager) User() *api.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.user
}

// Authenticated reports whether a credential is held and the roster is
// non-empty.
func (m *Manager) Authenticated() bool {
	return m.roster.Authenticated()
}

// leaveFailed moves Failed back to Unauthenticated. Caller holds m.mu.
func (m *Manager) leaveFailed() {
	if m.state == StateFailed {
		m.state = StateUnauthenticated
		m.message = ""
	}
}

func (m *Manager) transition(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if from != to {
		m.logger.Debug("session state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
}

// Initiate starts an authorization round trip for p: it fetches the
// authorize URL, records p as the provider hint and navigates to the URL.
// A failure leaves the state unchanged; on success a Failed session returns
// to Unauthenticated.
func (m *Manager) Initiate(ctx context.Context, p provider.ID) error {
	if !p.Valid() {
		return fmt.Errorf("session: initiate: %w: %q", provider.ErrUnsupported, p.String())
	}

	authorizeURL, err := m.facade.AuthorizeURL(ctx, p)
	if err != nil {
		return fmt.Errorf("session: requesting authorize URL for %s: %w", p, err)
	}

	if err := m.session.SetHint(p); err != nil {
		return err
	}

	m.mu.Lock()
	m.leaveFailed()
	m.mu.Unlock()

	m.logger.Info("starting authorization", slog.String("provider", p.String()))
	m.nav.Navigate(authorizeURL)

	return nil
}

// Exchange trades a normalized callback for a session credential. On success
// the roster is refreshed and a navigation to the dashboard is armed; on
// failure a navigation to the landing view is armed and the error wraps
// ErrExchangeFailed or the refresh error. The caller owns the returned
// Navigation in both cases.
func (m *Manager) Exchange(ctx context.Context, req callback.Request) (*Navigation, error) {
	m.mu.Lock()
	m.leaveFailed()
	m.mu.Unlock()

	m.transition(StateAuthenticating)

	resp, err := m.facade.HandleCallback(ctx, req.Provider, req.Code, req.State)
	if err != nil {
		return m.failExchange(fmt.Errorf("%w: %w", ErrExchangeFailed, err), "Authentication failed")
	}

	if resp == nil || resp.Token == "" {
		return m.failExchange(fmt.Errorf("%w: no token received", ErrExchangeFailed), "No token received")
	}

	if err := m.session.SetCredential(resp.Token); err != nil {
		return m.failExchange(err, "Authentication failed")
	}

	if err := m.roster.Refresh(ctx); err != nil {
		return m.failExchange(err, "Authentication failed")
	}

	m.mu.Lock()
	m.user = &resp.User
	m.mu.Unlock()

	m.transition(StateAuthenticated)
	m.logger.Info("authentication succeeded",
		slog.String("provider", req.Provider.String()),
		slog.Bool("authenticated", m.roster.Authenticated()),
	)

	return arm(m.schedule, m.nav, DashboardView, SuccessDelay), nil
}

// failExchange records the failure and arms the landing navigation. The
// recorded message is the backend's when one is available.
func (m *Manager) failExchange(err error, fallback string) (*Navigation, error) {
	msg := fallback

	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}

	m.mu.Lock()
	m.state = StateFailed
	m.message = msg
	m.mu.Unlock()

	m.logger.Warn("authentication failed", slog.String("error", err.Error()))

	return arm(m.schedule, m.nav, LandingView, FailureDelay), err
}

// Fail records a normalization failure raised before any exchange and arms a
// navigation to the landing view carrying the message.
func (m *Manager) Fail(err error) *Navigation {
	msg := err.Error()

	var redirectErr *callback.RedirectError
	if errors.As(err, &redirectErr) {
		msg = redirectErr.Message
	}

	m.mu.Lock()
	m.state = StateFailed
	m.message = msg
	m.mu.Unlock()

	if redirectErr != nil && redirectErr.Expected() {
		m.logger.Info("authorization declined", slog.String("reason", msg))
	} else {
		m.logger.Warn("callback rejected", slog.String("reason", msg))
	}

	return arm(m.schedule, m.nav, LandingView+"?error="+url.QueryEscape(msg), FailureDelay)
}

// CheckAuth re-validates a persisted credential at startup. A roster fetch
// failure logs out and is returned; without a credential the roster and
// selections are dropped and the state is Unauthenticated.
func (m *Manager) CheckAuth(ctx context.Context) error {
	m.mu.Lock()
	m.leaveFailed()
	m.mu.Unlock()

	found, err := m.session.Load()
	if err != nil {
		return err
	}

	if !found {
		// The credential may have been removed by another process since the
		// last check.
		m.roster.Clear()
		m.selections.PurgeAll()
		m.transition(StateUnauthenticated)

		return nil
	}

	if err := m.roster.Refresh(ctx); err != nil {
		m.logger.Warn("stored credential rejected, logging out", slog.String("error", err.Error()))

		if logoutErr := m.Logout(); logoutErr != nil {
			return errors.Join(err, logoutErr)
		}

		return err
	}

	if m.roster.Authenticated() {
		m.transition(StateAuthenticated)
	} else {
		m.transition(StateUnauthenticated)
	}

	return nil
}

// Logout clears the credential, the roster and every selection set. It is
// idempotent; in-memory state is cleared even if the Store write fails.
func (m *Manager) Logout() error {
	err := m.session.ClearCredential()

	m.roster.Clear()
	m.selections.PurgeAll()

	m.mu.Lock()
	m.user = nil
	m.message = ""
	m.mu.Unlock()

	m.transition(StateUnauthenticated)

	return err
}
