package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"parity/internal/app"
	"parity/internal/logger"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("PARITY_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
	}

	a, err := app.New(path)
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Errorf("run failed: %v", err)
		os.Exit(1)
	}
	logger.Infof("shutdown complete")
}
