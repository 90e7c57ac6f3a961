// Command marketmock starts a fake marketplace API for local runs.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/marketmock"
)

func main() {
	addr := flag.String("addr", ":9980", "listen address")
	ordersPerSec := flag.Float64("orders_per_sec", 2, "orders endpoint pace, 0 disables")
	listingsPerSec := flag.Float64("listings_per_sec", 1, "listings endpoint pace, 0 disables")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := marketmock.NewServer(marketmock.Options{
		OrdersPerSecond:   *ordersPerSec,
		ListingsPerSecond: *listingsPerSec,
	})
	srv := &http.Server{
		Addr:         *addr,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("marketmock listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("marketmock failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("marketmock shutdown failed: %v", err)
	}
}
