package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/drivebox/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

// configJSON is the JSON output schema for config show.
type configJSON struct {
	ConfigPath string `json:"config_path"`
	API        struct {
		BaseURL    string `json:"base_url"`
		Timeout    string `json:"timeout"`
		MaxRetries int    `json:"max_retries"`
		UserAgent  string `json:"user_agent"`
	} `json:"api"`
	Callback struct {
		ListenAddr   string `json:"listen_addr"`
		OpenBrowser  bool   `json:"open_browser"`
		LoginTimeout string `json:"login_timeout"`
	} `json:"callback"`
	Storage struct {
		Backend string `json:"backend"`
		Path    string `json:"path"`
	} `json:"storage"`
	Logging struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"logging"`
}

func toConfigJSON(r *config.Resolved) configJSON {
	var out configJSON

	out.ConfigPath = r.ConfigPath
	out.API.BaseURL = r.API.BaseURL
	out.API.Timeout = r.Timeout.String()
	out.API.MaxRetries = r.API.MaxRetries
	out.API.UserAgent = r.API.UserAgent
	out.Callback.ListenAddr = r.Callback.ListenAddr
	out.Callback.OpenBrowser = r.Callback.OpenBrowser
	out.Callback.LoginTimeout = r.LoginTimeout.String()
	out.Storage.Backend = r.Storage.Backend
	out.Storage.Path = r.Storage.Path
	out.Logging.Level = r.Logging.Level
	out.Logging.Format = r.Logging.Format

	return out
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, toConfigJSON(cc.Cfg))
	}

	return config.RenderEffective(cc.Cfg, cc.Stdout)
}
