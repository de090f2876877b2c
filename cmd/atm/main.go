package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/simpleatm/atm/internal/app"
	"github.com/simpleatm/atm/internal/config"
	"github.com/simpleatm/atm/internal/console"
	"github.com/simpleatm/atm/internal/logging"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		usage, err := config.Usage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "describe config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(usage)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.New(cfg.LogLevel, cfg.LogFile)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	// Scan blocks on stdin, so the console runs in its own goroutine and a
	// signal ends the process without waiting for the next line.
	errCh := make(chan error, 1)
	go func() {
		errCh <- console.New(a.Ledger, os.Stdin, os.Stdout, logger).Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		fmt.Println()
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			logger.Error("console error", "error", err)
			a.Close()
			os.Exit(1)
		}
	}

	logger.Info("atm exited cleanly", "app", cfg.AppName, "env", cfg.AppEnv)
}
