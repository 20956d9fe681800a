package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"

	"github.com/tonimelisma/drivebox/internal/api"
	"github.com/tonimelisma/drivebox/internal/registry"
	"github.com/tonimelisma/drivebox/internal/selection"
	"github.com/tonimelisma/drivebox/internal/server"
	"github.com/tonimelisma/drivebox/internal/session"
	"github.com/tonimelisma/drivebox/internal/store"
)

// errNotLoggedIn is returned by commands that need a session when none is
// persisted or the persisted one no longer yields any connected provider.
var errNotLoggedIn = errors.New("not logged in, run 'drivebox login <provider>' first")

// app is the object graph shared by every command: one store, one session,
// one backend client and the three state components built on them.
type app struct {
	logger     *slog.Logger
	store      store.Store
	closer     io.Closer
	session    *session.Session
	client     *api.Client
	selections *selection.Manager
	registry   *registry.Registry
	navigator  *server.Navigator
	manager    *session.Manager
}

// newApp opens the configured store and wires the components. open launches
// the system browser; nil means the authorize URL is printed instead.
func newApp(ctx context.Context, cc *CLIContext, open func(string) error) (*app, error) {
	cfg := cc.Cfg
	logger := cc.Logger

	st, closer, err := store.Open(ctx, store.Backend(cfg.Storage.Backend), cfg.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	sess := session.New(st, logger)

	client := api.NewClient(cfg.API.BaseURL, &http.Client{Timeout: cfg.Timeout}, sess, logger, cfg.API.UserAgent)
	client.SetMaxRetries(cfg.API.MaxRetries)

	client.OnUnauthorized(func() {
		if clearErr := sess.ClearCredential(); clearErr != nil {
			logger.Warn("clearing rejected credential", slog.String("error", clearErr.Error()))
		}
	})

	selections := selection.NewManager(client, logger)
	reg := registry.New(client, sess, selections, logger)
	nav := server.NewNavigator(open, cc.Stderr, logger)
	mgr := session.NewManager(sess, client, reg, selections, nav, logger)

	return &app{
		logger:     logger,
		store:      st,
		closer:     closer,
		session:    sess,
		client:     client,
		selections: selections,
		registry:   reg,
		navigator:  nav,
		manager:    mgr,
	}, nil
}

// Close releases the store.
func (a *app) Close() error {
	return a.closer.Close()
}

// requireAuth re-validates the persisted credential and fails unless the
// session ends up Authenticated.
func (a *app) requireAuth(ctx context.Context) error {
	if err := a.manager.CheckAuth(ctx); err != nil {
		return fmt.Errorf("checking session: %w", err)
	}

	if !a.manager.Authenticated() {
		return errNotLoggedIn
	}

	return nil
}

// openBrowser launches the platform URL handler.
func openBrowser(target string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	go cmd.Wait() //nolint:errcheck // reaped only to avoid a zombie

	return nil
}
