// cmd/marketcheck/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/marketcheck/cmd"
)

// osExit allows tests to observe the exit code.
var osExit = os.Exit

func main() {
	// SIGINT and SIGTERM cancel running cases; sessions still close.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(exitCode(cmd.Execute(ctx)))
}

// exitCode maps the command error to the process exit status. Cancellation
// by a signal is reported as 130.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
