package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/drivebox/internal/store"
)

// statusDebounce coalesces the burst of events a single atomic session write
// produces (temp file create, write, rename).
const statusDebounce = 250 * time.Millisecond

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session state and connected providers",
		Long: `Display the session state, where it is stored and which providers are
connected. The stored credential is re-validated against the backend; a
credential the backend rejects is discarded.

With --watch, status is printed again whenever the session store changes on
disk, for example when a login completes in another terminal.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}

	cmd.Flags().Bool("watch", false, "re-print status whenever the session store changes")

	return cmd
}

// statusReport is the status command's output.
type statusReport struct {
	State       string        `json:"state"`
	Backend     string        `json:"backend"`
	Storage     string        `json:"storage"`
	StoragePath string        `json:"storage_path,omitempty"`
	Providers   []rosterEntry `json:"providers"`
	Error       string        `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if watch {
		ctx = interruptContext(ctx, "status watch", cc.Logger)
	}

	a, err := newApp(ctx, cc, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	report := func() error {
		return printStatus(cc, buildStatus(ctx, cc, a))
	}

	if err := report(); err != nil {
		return err
	}

	if !watch {
		return nil
	}

	if store.Backend(cc.Cfg.Storage.Backend) == store.BackendMemory {
		return fmt.Errorf("--watch needs a persistent storage backend, not %q", cc.Cfg.Storage.Backend)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	fw := &fsnotifyWatcher{w: w}
	defer fw.Close()

	return watchStore(ctx, fw, cc.Cfg.Storage.Path, statusDebounce, report, cc.Logger)
}

func buildStatus(ctx context.Context, cc *CLIContext, a *app) statusReport {
	r := statusReport{
		Backend:     cc.Cfg.API.BaseURL,
		Storage:     cc.Cfg.Storage.Backend,
		StoragePath: cc.Cfg.Storage.Path,
	}

	if err := a.manager.CheckAuth(ctx); err != nil {
		r.Error = err.Error()
	}

	r.State = a.manager.State().String()
	r.Providers = rosterEntries(a.registry.Roster())

	return r
}

func printStatus(cc *CLIContext, r statusReport) error {
	if cc.Flags.JSON {
		return printJSON(cc.Stdout, r)
	}

	w := cc.Stdout

	fmt.Fprintf(w, "Session: %s\n", r.State)
	fmt.Fprintf(w, "Backend: %s\n", r.Backend)

	if r.StoragePath != "" {
		fmt.Fprintf(w, "Storage: %s (%s)\n", r.Storage, r.StoragePath)
	} else {
		fmt.Fprintf(w, "Storage: %s\n", r.Storage)
	}

	if r.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", r.Error)
	}

	if len(r.Providers) == 0 {
		return nil
	}

	fmt.Fprintln(w)

	rows := make([][]string, 0, len(r.Providers))
	for _, p := range r.Providers {
		rows = append(rows, []string{p.DisplayName, p.UserInfo, formatAge(p.ConnectedAt)})
	}

	printTable(w, []string{"PROVIDER", "ACCOUNT", "CONNECTED"}, rows)

	return nil
}

// fsWatcher abstracts fsnotify.Watcher so the watch loop can be driven by
// tests.
type fsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func (f *fsnotifyWatcher) Add(name string) error         { return f.w.Add(name) }
func (f *fsnotifyWatcher) Close() error                  { return f.w.Close() }
func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error          { return f.w.Errors }

// watchStore calls report after changes to the store at path settle for
// debounce. The parent directory is watched because the file store replaces
// the session file by rename; names sharing the file's prefix (SQLite -wal
// and -journal files) count as changes too.
func watchStore(
	ctx context.Context, watcher fsWatcher, path string, debounce time.Duration,
	report func() error, logger *slog.Logger,
) error {
	if path == "" {
		return fmt.Errorf("session store has no path to watch")
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	logger.Debug("watching session store", slog.String("path", path))

	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}

			if !strings.HasPrefix(filepath.Base(ev.Name), name) {
				continue
			}

			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			fire = time.After(debounce)

		case err, ok := <-watcher.Errors():
			if !ok {
				return nil
			}

			logger.Warn("session store watcher error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil

			if err := report(); err != nil {
				return err
			}
		}
	}
}
