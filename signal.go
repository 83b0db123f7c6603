package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// interruptExitCode is the conventional status for a process killed by SIGINT.
const interruptExitCode = 130

// exitFunc ends the process on a second signal. Tests replace it.
var exitFunc = os.Exit

// shutdownContext returns a context canceled by the first SIGINT or SIGTERM.
// A bulk import stops between records and still writes its run summary; a
// watcher stops waiting for changes. A second signal exits immediately.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("interrupted, finishing current record",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("interrupted again, exiting now",
				slog.String("signal", sig.String()),
			)
			exitFunc(interruptExitCode)
		case <-parent.Done():
		}
	}()

	return ctx
}
