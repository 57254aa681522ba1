// File: cmd/ezvoucher/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/dkwon-dev/ezvoucher/cmd"
	"github.com/dkwon-dev/ezvoucher/internal/observability"
)

const panicLogFile = "panic.log"

// main is the entry point of the application.
func main() {
	defer handlePanic()

	// Interrupts tear down the run gracefully; the browser session closes
	// through context cancellation.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// handlePanic records the stack before the process dies; an operator reading
// the console only sees the banner message.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}

	content := fmt.Sprintf("panic: %v\n\n%s\n", r, debug.Stack())
	if err := os.WriteFile(panicLogFile, []byte(content), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", panicLogFile, err)
	}
	fmt.Fprintf(os.Stderr, "fatal error, details written to %s\n", panicLogFile)

	observability.Sync()
	os.Exit(1)
}
