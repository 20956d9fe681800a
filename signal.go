package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// interruptedExitCode is the conventional status after SIGINT.
const interruptedExitCode = 130

// Seams for tests.
var (
	notifySignals = func(ch chan<- os.Signal) func() {
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		return func() { signal.Stop(ch) }
	}
	forceExit = os.Exit
)

// interruptContext cancels on the first SIGINT/SIGTERM so a waiting login or
// status watch can close the callback server and release the login lock.
// A second signal exits at once. activity names what is being interrupted
// in the log.
func interruptContext(parent context.Context, activity string, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	stop := notifySignals(sigCh)

	go func() {
		defer stop()

		select {
		case sig := <-sigCh:
			logger.Info("interrupted, shutting down",
				slog.String("activity", activity),
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("second signal, exiting without cleanup",
				slog.String("activity", activity),
				slog.String("signal", sig.String()),
			)
			forceExit(interruptedExitCode)
		case <-parent.Done():
		}
	}()

	return ctx
}
