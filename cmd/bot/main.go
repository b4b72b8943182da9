package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hwbot/internal/app"
	"hwbot/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dotenv := config.DefaultDotEnv
	if v, ok := os.LookupEnv(config.EnvDotEnv); ok {
		dotenv = strings.TrimSpace(v)
	}
	cfgm := config.NewConfigManager(os.Getenv(config.EnvConfigPath), config.WithDotEnv(dotenv))

	a, err := app.New(cfgm)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		_ = a.Stop(context.Background())
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		fmt.Fprintln(os.Stderr, "stopped with error:", err)
		stopCancel()
		cancel()
		os.Exit(1)
	}
}
