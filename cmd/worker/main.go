package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"scholarai/internal/bootstrap"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("close resources failed: %v", err)
		}
	}()

	if err := app.StartWorker(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	app.Log.Info("job worker shutting down")
	return nil
}
