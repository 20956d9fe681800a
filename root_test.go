package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/drivebox/internal/config"
)

func resolvedWithLogging(level, format string) *config.Resolved {
	return &config.Resolved{Logging: config.LoggingConfig{Level: level, Format: format}}
}

func TestBuildLogger_Default(t *testing.T) {
	logger := buildLogger(nil, CLIFlags{}, &bytes.Buffer{})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigLevels(t *testing.T) {
	tests := []struct {
		level    string
		enabled  slog.Level
		disabled slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := buildLogger(resolvedWithLogging(tt.level, "text"), CLIFlags{}, &bytes.Buffer{})

			assert.True(t, logger.Handler().Enabled(context.Background(), tt.enabled))
			assert.False(t, logger.Handler().Enabled(context.Background(), tt.disabled))
		})
	}
}

func TestBuildLogger_VerboseOverridesConfig(t *testing.T) {
	logger := buildLogger(resolvedWithLogging("error", "text"), CLIFlags{Verbose: true}, &bytes.Buffer{})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_QuietOverridesConfig(t *testing.T) {
	logger := buildLogger(resolvedWithLogging("debug", "text"), CLIFlags{Quiet: true}, &bytes.Buffer{})

	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
}

func TestBuildLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := buildLogger(resolvedWithLogging("info", "json"), CLIFlags{}, &buf)
	logger.Info("hello", slog.String("provider", "github"))

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"provider":"github"`)
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	expected := []string{
		"login", "logout", "whoami", "disconnect", "status",
		"ls", "stat", "get", "put", "mkdir", "rm", "repos", "bulk-get", "config",
	}

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestNewRootCmd_PersistentFlags(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"config", "api-url", "json", "verbose", "quiet"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "expected persistent flag %q not found", name)
	}
}

func TestNewRootCmd_VerboseQuietExclusive(t *testing.T) {
	env := newCLIEnv(t, newFakeBackend(t))

	_, _, err := env.run("--verbose", "--quiet", "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestNewRootCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nbase_ulr = \"http://x\"\n"), 0o600))

	clearConfigEnv(t)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "config", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean")
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnv_RealEnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DRIVEBOX_TEST_A=from-file\nDRIVEBOX_TEST_B=from-file\n"), 0o600))

	t.Setenv("DRIVEBOX_TEST_A", "from-env")
	t.Setenv("DRIVEBOX_TEST_B", "")
	os.Unsetenv("DRIVEBOX_TEST_B")

	require.NoError(t, loadDotEnv(path))

	assert.Equal(t, "from-env", os.Getenv("DRIVEBOX_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("DRIVEBOX_TEST_B"))
}

func TestMustCLIContext_PanicsWithoutContext(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

func TestCLIContext_RoundTrip(t *testing.T) {
	cc := &CLIContext{Flags: CLIFlags{JSON: true}}

	got := mustCLIContext(withCLIContext(context.Background(), cc))
	assert.Same(t, cc, got)
}

func TestConfigShow_Text(t *testing.T) {
	env := newCLIEnv(t, newFakeBackend(t))

	stdout, _, err := env.run("config", "show")
	require.NoError(t, err)

	assert.Contains(t, stdout, "[api]")
	assert.Contains(t, stdout, env.backend.URL)
	assert.Contains(t, stdout, `listen_addr   = "127.0.0.1:0"`)
}

func TestConfigShow_JSON(t *testing.T) {
	env := newCLIEnv(t, newFakeBackend(t))

	stdout, _, err := env.run("--json", "--api-url", "http://override.test:9", "config", "show")
	require.NoError(t, err)

	assert.Contains(t, stdout, `"base_url": "http://override.test:9"`)
	assert.Contains(t, stdout, `"backend": "file"`)
	assert.Contains(t, stdout, `"login_timeout": "10s"`)
}

func TestRun_ExitStatus(t *testing.T) {
	env := newCLIEnv(t, newFakeBackend(t, "github"))

	var stdout, stderr bytes.Buffer

	code := run([]string{"--config", env.configPath, "config", "show"}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
	assert.Empty(t, stderr.String())

	stderr.Reset()

	code = run([]string{"--config", env.configPath, "whoami"}, &stdout, &stderr)
	assert.Equal(t, exitNotLoggedIn, code)
	assert.Contains(t, stderr.String(), "Error: not logged in")

	stderr.Reset()

	code = run([]string{"--config", env.configPath, "login", "box"}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
}
