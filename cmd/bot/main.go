package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kc-ladder-bot/internal/app"
	"kc-ladder-bot/internal/config"
	"kc-ladder-bot/internal/logging"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML or JSON)")
	keysPath := flag.String("keys", "", "path to API keys file; KC_API_* env vars override it")
	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "-config is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := config.LoadEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envPath, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, level := logging.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	log.Info("config loaded", zap.String("path", *configPath), zap.String("symbol", cfg.Symbol()))

	keys, err := config.LoadKeys(*keysPath)
	if err != nil {
		log.Error("failed to load keys", zap.Error(err))
		os.Exit(1)
	}

	application, err := app.New(cfg, keys, *configPath, log, level)
	if err != nil {
		log.Error("failed to initialize app", zap.Error(err))
		os.Exit(1)
	}
	log.Info("app initialized", zap.Int("strategies", len(cfg.Strategies)), zap.Bool("reconcile", cfg.Reconcile.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("interrupted")
			return
		}
		log.Error("app terminated", zap.Error(err))
		os.Exit(1)
	}
}
