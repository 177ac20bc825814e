package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/formulus/formulus-go/internal/app"
	"github.com/formulus/formulus-go/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.RunSync(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
