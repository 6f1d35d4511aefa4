package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/canopy-network/govlens/app/query"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, cfg := query.Initialize(ctx)
	query.NewServer(app, cfg.Addr)

	app.Start(ctx)
}
