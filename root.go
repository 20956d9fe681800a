package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/drivebox/internal/api"
	"github.com/tonimelisma/drivebox/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// dotEnvFile is loaded from the working directory before config resolution.
// Variables already present in the environment are never overwritten.
const dotEnvFile = ".env"

// CLIFlags holds the persistent flags shared by every subcommand.
type CLIFlags struct {
	ConfigPath string
	APIURL     string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext is built once per invocation by the root pre-run and carried
// on the command context.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// cliContextFrom returns the CLIContext stored on ctx, or nil.
func cliContextFrom(ctx context.Context) *CLIContext {
	if ctx == nil {
		return nil
	}

	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)

	return cc
}

// mustCLIContext returns the CLIContext stored on ctx. A missing context is a
// wiring bug, not a user error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("drivebox: command context has no CLIContext")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered.
func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:     "drivebox",
		Short:   "DriveBox CLI client",
		Long:    "One session across Google Drive, GitHub and Dropbox, held against a DriveBox backend.",
		Version: version,
		// run prints errors itself.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(flags, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cmd.SetContext(withCLIContext(cmd.Context(), cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flags.APIURL, "api-url", "", "DriveBox backend base URL")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newDisconnectCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newReposCmd())
	cmd.AddCommand(newBulkGetCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext resolves the effective configuration from the override
// chain and builds the logger.
func loadCLIContext(flags CLIFlags, stdout, stderr io.Writer) (*CLIContext, error) {
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	cli := config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
		APIURL:     flags.APIURL,
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &CLIContext{
		Flags:  flags,
		Cfg:    resolved,
		Logger: buildLogger(resolved, flags, stderr),
		Stdout: stdout,
		Stderr: stderr,
	}, nil
}

// loadDotEnv loads path into the process environment. A missing file is not
// an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger(cfg *config.Resolved, flags CLIFlags, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	format := "text"

	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = cfg.Logging.Format
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// Exit statuses.
const (
	exitOK          = 0
	exitFailure     = 1
	exitNotLoggedIn = 2
)

// run executes the root command with args and returns the process exit
// status. Errors are printed to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	switch {
	case errors.Is(err, errNotLoggedIn), errors.Is(err, api.ErrUnauthorized):
		return exitNotLoggedIn
	case errors.Is(err, context.Canceled):
		return interruptedExitCode
	default:
		return exitFailure
	}
}
