package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	workerreports "github.com/canopy-network/govlens/app/reporter"
)

func main() {
	// A missing .env is fine; the environment wins over the file.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	workerreports.Initialize(ctx).Start(ctx)
}
