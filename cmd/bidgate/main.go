package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/drblury/bidgate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bidgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg, err := bidgate.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := bidgate.NewLogger(bidgate.LoggingOptions{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Backend: cfg.LogBackend,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := bidgate.NewGateway(ctx, cfg, logger, bidgate.GatewayDependencies{})
	if err != nil {
		logger.Error("Failed to create gateway", err, nil)
		return err
	}

	if err := gw.Start(ctx); err != nil {
		logger.Error("Gateway stopped with error", err, nil)
		return err
	}
	logger.Info("Gateway stopped", nil)
	return nil
}
