package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"arena-duel/server/internal/app"
	"arena-duel/server/internal/config"
	"arena-duel/server/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := config.Load(telemetry.WrapLogger(log.Default()))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := app.Run(ctx, app.Config{Env: env}); err != nil {
		log.Fatalf("%v", err)
	}
}
