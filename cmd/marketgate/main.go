// Command marketgate starts the marketplace admission service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/app"
	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(config.LoadOptions{
		Args:    os.Args[1:],
		Environ: os.Environ(),
	})
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.NewApplication(*cfg)
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}
	if err := application.Start(ctx); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("failed to shutdown application: %v", err)
	}
}
