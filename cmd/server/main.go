package main

import (
	"collection-route-service/internal/api"
	"collection-route-service/internal/app"
	"collection-route-service/internal/config"
	"collection-route-service/internal/platform/metrics"
	"collection-route-service/internal/platform/obs"
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// main is the application composition root.
// It wires the matrix cache, routing provider and solver engine behind the
// planner and serves the HTTP API until interrupted.
func main() {
	configDir := flag.String("config", "", "directory holding config.yaml and .env")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatal(err)
	}
	level, _ := obs.ParseLevel(cfg.LogLevel)
	obs.SetLevel(level)
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Timeouts are tuned for cold-cache planning: provider rows plus the solver time limit.
	writeTimeout := 30*time.Second + cfg.SolveConfig().TimeLimit*2
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(a.Planner),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening addr=:%s", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server stopped: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Printf("close: %v", err)
	}
}
