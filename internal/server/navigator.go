package server

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Navigator routes navigations: in-app view paths go to the waiting command
// through Views, anything else is opened in the browser.
type Navigator struct {
	open   func(string) error
	stderr io.Writer
	logger *slog.Logger
	views  chan string
}

// NewNavigator creates a Navigator. open launches the system browser; when it
// fails the URL is printed to stderr so the user can open it by hand.
func NewNavigator(open func(string) error, stderr io.Writer, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Navigator{
		open:   open,
		stderr: stderr,
		logger: logger,
		views:  make(chan string, 1),
	}
}

// Views delivers in-app navigation targets such as "/dashboard".
func (n *Navigator) Views() <-chan string {
	return n.views
}

// Navigate implements session.Navigator.
func (n *Navigator) Navigate(target string) {
	if strings.HasPrefix(target, "/") {
		select {
		case n.views <- target:
		default:
			n.logger.Debug("view navigation dropped, no reader", slog.String("target", target))
		}

		return
	}

	n.logger.Info("opening browser for authorization")

	if n.open == nil {
		fmt.Fprintf(n.stderr, "Open this URL in your browser:\n%s\n", target)
		return
	}

	if err := n.open(target); err != nil {
		n.logger.Warn("failed to open browser, printing URL",
			slog.String("error", err.Error()),
		)

		fmt.Fprintf(n.stderr, "Open this URL in your browser:\n%s\n", target)
	}
}
