package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated summary
// to w. This powers the "config show" command.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	if r.ConfigPath != "" {
		ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)
	} else {
		ew.printf("# Effective configuration\n\n")
	}

	ew.printf("[api]\n")
	ew.printf("  base_url      = %q\n", r.API.BaseURL)
	ew.printf("  timeout       = %q\n", r.API.Timeout)
	ew.printf("  max_retries   = %d\n", r.API.MaxRetries)
	ew.printf("  user_agent    = %q\n\n", r.API.UserAgent)

	ew.printf("[callback]\n")
	ew.printf("  listen_addr   = %q\n", r.Callback.ListenAddr)
	ew.printf("  open_browser  = %t\n", r.Callback.OpenBrowser)
	ew.printf("  login_timeout = %q\n\n", r.Callback.LoginTimeout)

	ew.printf("[storage]\n")
	ew.printf("  backend       = %q\n", r.Storage.Backend)
	ew.printf("  path          = %q\n\n", r.Storage.Path)

	ew.printf("[logging]\n")
	ew.printf("  level         = %q\n", r.Logging.Level)
	ew.printf("  format        = %q\n", r.Logging.Format)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
