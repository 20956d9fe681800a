package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/drivebox/internal/api"
	"github.com/tonimelisma/drivebox/internal/callback"
	"github.com/tonimelisma/drivebox/internal/config"
	"github.com/tonimelisma/drivebox/internal/provider"
	"github.com/tonimelisma/drivebox/internal/server"
	"github.com/tonimelisma/drivebox/internal/session"
)

// viewLinger keeps the callback server up after the final view is reached so
// the browser can follow its own refresh to the same page.
const viewLinger = 2 * time.Second

// errLoginTimeout is returned when no callback arrives within the configured
// login timeout.
var errLoginTimeout = errors.New("timed out waiting for the authorization callback")

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <provider>",
		Short: "Connect a provider and establish a session",
		Long: `Connect Google Drive, GitHub or Dropbox to your DriveBox session.

Starts the loopback callback server, opens the provider's authorization page in
your browser and waits until the backend has exchanged the callback for a
session credential. Logging in with another provider while a session exists
adds that provider to the same session.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: providerNames(),
		RunE:      runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session credential",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the providers connected to the session",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}

	cmd.Flags().Bool("details", false, "also fetch the Dropbox account and GitHub profile")

	return cmd
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "disconnect <provider>",
		Short:     "Revoke a connected provider",
		Args:      cobra.ExactArgs(1),
		ValidArgs: providerNames(),
		RunE:      runDisconnect,
	}
}

func providerNames() []string {
	ids := provider.All()
	names := make([]string, len(ids))

	for i, id := range ids {
		names[i] = id.String()
	}

	return names
}

func runLogin(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	p, err := provider.Parse(args[0])
	if err != nil {
		return err
	}

	release, err := acquireLoginLock(filepath.Join(config.DefaultDataDir(), loginLockName))
	if err != nil {
		return err
	}
	defer release()

	ctx := interruptContext(cmd.Context(), "login", logger)

	var open func(string) error
	if cc.Cfg.Callback.OpenBrowser {
		open = openBrowser
	}

	a, err := newApp(ctx, cc, open)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(callback.NewNormalizer(callback.DefaultResolvers()), a.manager, a.session, a.registry, logger)
	defer srv.Close()

	errCh := make(chan error, 1)

	bound, err := srv.Start(ctx, cc.Cfg.Callback.ListenAddr, errCh)
	if err != nil {
		return err
	}

	cc.Statusf("Waiting for %s authorization on http://%s\n", p.DisplayName(), bound)

	if err := a.manager.Initiate(ctx, p); err != nil {
		return err
	}

	view, err := awaitView(ctx, a.navigator.Views(), errCh, cc.Cfg.LoginTimeout)
	if err != nil {
		return err
	}

	if view != session.DashboardView {
		msg := a.manager.Message()
		if msg == "" {
			msg = "Authentication failed"
		}

		return fmt.Errorf("login failed: %s", msg)
	}

	cc.Statusf("Login successful.\n")

	if err := printRoster(cc, a.registry.Roster()); err != nil {
		return err
	}

	linger(ctx, viewLinger)

	return nil
}

// awaitView blocks until an in-app view is reached, the server fails, the
// timeout elapses or ctx is canceled.
func awaitView(ctx context.Context, views <-chan string, errCh <-chan error, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case view := <-views:
		return view, nil
	case err := <-errCh:
		return "", err
	case <-timer.C:
		return "", errLoginTimeout
	case <-ctx.Done():
		return "", fmt.Errorf("login interrupted: %w", ctx.Err())
	}
}

func linger(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	a, err := newApp(cmd.Context(), cc, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.manager.Logout(); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}

	cc.Statusf("Logged out.\n")

	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	a, err := newApp(ctx, cc, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	details, err := cmd.Flags().GetBool("details")
	if err != nil {
		return err
	}

	if !details {
		return printRoster(cc, a.registry.Roster())
	}

	info, err := fetchAccountDetails(ctx, a)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, info)
	}

	printRosterText(cc.Stdout, a.registry.Roster())
	printAccountDetails(cc.Stdout, info)

	return nil
}

// accountDetails is the whoami --details output.
type accountDetails struct {
	Providers []rosterEntry       `json:"providers"`
	Dropbox   *api.DropboxAccount `json:"dropbox,omitempty"`
	GitHub    json.RawMessage     `json:"github,omitempty"`
}

// githubProfile is the subset of the GitHub profile printed as text.
type githubProfile struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func fetchAccountDetails(ctx context.Context, a *app) (*accountDetails, error) {
	out := &accountDetails{Providers: rosterEntries(a.registry.Roster())}

	if a.registry.Connected(provider.Dropbox) {
		acct, err := a.client.DropboxAccount(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching Dropbox account: %w", err)
		}

		out.Dropbox = acct
	}

	if a.registry.Connected(provider.GitHub) {
		profile, err := a.client.GitHubProfile(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching GitHub profile: %w", err)
		}

		out.GitHub = profile
	}

	return out, nil
}

func printAccountDetails(w io.Writer, info *accountDetails) {
	if info.Dropbox != nil {
		fmt.Fprintf(w, "\nDropbox: %s <%s>\n", info.Dropbox.Name.DisplayName, info.Dropbox.Email)
	}

	if len(info.GitHub) > 0 {
		var gh githubProfile
		if err := json.Unmarshal(info.GitHub, &gh); err == nil {
			fmt.Fprintf(w, "\nGitHub:  %s", gh.Login)

			if gh.Name != "" {
				fmt.Fprintf(w, " (%s)", gh.Name)
			}

			fmt.Fprintln(w)
		}
	}
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	p, err := provider.Parse(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cc, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	if !a.registry.Connected(p) {
		return fmt.Errorf("%s is not connected", p.DisplayName())
	}

	msg, err := a.registry.Disconnect(ctx, p)
	if err != nil {
		return err
	}

	if msg == "" {
		msg = p.DisplayName() + " disconnected"
	}

	cc.Statusf("%s\n", msg)

	if a.registry.Len() == 0 {
		cc.Statusf("No providers remain connected. Run 'drivebox login <provider>' to connect one.\n")
	}

	return nil
}

// rosterEntry is the JSON shape of one connected provider.
type rosterEntry struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	DisplayName string    `json:"display_name"`
	ConnectedAt time.Time `json:"connected_at"`
	UserInfo    string    `json:"user_info,omitempty"`
}

func rosterEntries(roster []api.ConnectedProvider) []rosterEntry {
	out := make([]rosterEntry, 0, len(roster))

	for _, c := range roster {
		out = append(out, rosterEntry{
			ID:          c.ID,
			Provider:    c.Provider.String(),
			DisplayName: c.Provider.DisplayName(),
			ConnectedAt: c.ConnectedAt,
			UserInfo:    c.UserInfo,
		})
	}

	return out
}

func printRoster(cc *CLIContext, roster []api.ConnectedProvider) error {
	if cc.Flags.JSON {
		return printJSON(cc.Stdout, rosterEntries(roster))
	}

	printRosterText(cc.Stdout, roster)

	return nil
}

func printRosterText(w io.Writer, roster []api.ConnectedProvider) {
	if len(roster) == 0 {
		fmt.Fprintln(w, "No providers connected.")
		return
	}

	rows := make([][]string, 0, len(roster))
	for _, c := range roster {
		rows = append(rows, []string{c.Provider.DisplayName(), c.UserInfo, formatAge(c.ConnectedAt)})
	}

	printTable(w, []string{"PROVIDER", "ACCOUNT", "CONNECTED"}, rows)
}
