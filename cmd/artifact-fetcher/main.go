package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vertextoedge/artifact-fetcher/internal/logger"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// Ctrl+C cancels the running transfer
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
