package main

import (
	"context"
	"github.com/langowen/ratesync/deploy/config"
	"github.com/langowen/ratesync/internal/currency_fetcher/app"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg := config.NewConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.NewApp(cfg).Start(ctx); err != nil {
		log.Fatalln("Failed to run currency fetcher", "error", err)
	}
}
