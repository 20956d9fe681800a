package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tonimelisma/drivebox/internal/callback"
)

func inputFrom(r *http.Request) callback.Input {
	return callback.Input{
		Query: callback.QueryFromValues(r.URL.Query()),
		Path:  r.URL.Path,
	}
}

// handleProviderCallback never exchanges. A valid callback is re-emitted to
// the generic surface; anything else fails the flow.
func (s *Server) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	marker := chi.URLParam(r, "provider")

	req, err := s.normalizer.Normalize(marker, inputFrom(r))
	if err != nil {
		s.fail(w, err)
		return
	}

	s.logger.Debug("forwarding provider callback", slog.String("provider", req.Provider.String()))
	http.Redirect(w, r, callback.ForwardURL(req), http.StatusFound)
}

// handleGenericCallback is the only place an exchange happens.
func (s *Server) handleGenericCallback(w http.ResponseWriter, r *http.Request) {
	in := inputFrom(r)

	hint, err := s.hints.Hint()
	if err != nil {
		s.logger.Warn("reading provider hint", slog.String("error", err.Error()))
	}

	in.Hint = hint

	req, err := s.normalizer.Normalize("", in)
	if err != nil {
		s.fail(w, err)
		return
	}

	nav, err := s.sessions.Exchange(r.Context(), req)
	s.track(nav)

	if err != nil {
		render(w, http.StatusOK, statusPage{
			Title:    "Authentication Failed",
			Message:  s.sessions.Message(),
			Detail:   "Redirecting you back to the home page...",
			Redirect: nav.Target(),
			Delay:    int(nav.Delay().Seconds()),
		})

		return
	}

	render(w, http.StatusOK, statusPage{
		Title:    "Authentication Successful!",
		Message:  req.Provider.DisplayName() + " is connected.",
		Detail:   "Redirecting you to the dashboard...",
		Redirect: nav.Target(),
		Delay:    int(nav.Delay().Seconds()),
	})
}

// fail hands a normalization failure to the session and renders it.
func (s *Server) fail(w http.ResponseWriter, err error) {
	nav := s.sessions.Fail(err)
	s.track(nav)

	render(w, http.StatusOK, statusPage{
		Title:    "Authentication Failed",
		Message:  s.sessions.Message(),
		Detail:   "Redirecting you back to the home page...",
		Redirect: nav.Target(),
		Delay:    int(nav.Delay().Seconds()),
	})
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	page := statusPage{
		Title:  "DriveBox",
		Detail: "You can close this window and return to the terminal.",
	}

	if msg := r.URL.Query().Get("error"); msg != "" {
		page.Title = "Authentication Failed"
		page.Message = msg
	}

	render(w, http.StatusOK, page)
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	page := dashboardPage{
		Authenticated: s.roster.Authenticated(),
	}

	for _, c := range s.roster.Roster() {
		page.Providers = append(page.Providers, dashboardRow{
			Name:        c.Provider.DisplayName(),
			UserInfo:    c.UserInfo,
			ConnectedAt: c.ConnectedAt,
		})
	}

	renderDashboard(w, page)
}
