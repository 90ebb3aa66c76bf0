package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codedrop/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

// exitInterrupted is returned when a signal stopped the command.
const exitInterrupted = 130

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if cfg.TrustedProjectConfigPath != "" {
		fmt.Fprintf(os.Stderr, "warning: using trusted project config from %s\n", cfg.TrustedProjectConfigPath)
	}

	// srv shuts down gracefully and send rolls back its upload on either signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		for _, line := range formatCLIError(err) {
			fmt.Fprintln(os.Stderr, line)
		}
		if ctx.Err() != nil {
			return exitInterrupted
		}
		return 1
	}
	return 0
}
