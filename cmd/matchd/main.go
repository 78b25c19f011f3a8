// Command matchd serves trade matching and P&L reconciliation over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inr-trade-matcher/internal/httpapi"
	"inr-trade-matcher/internal/logger"
	"inr-trade-matcher/internal/service"
	"inr-trade-matcher/internal/store"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	_ = godotenv.Load()
	must(logger.Init())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := store.LoadConfig(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info(ctx, "Config file not found, using defaults", "path", *configPath)
		cfg, err = store.Default(), nil
	}
	must(err)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	svc, err := service.NewFromConfig(cfg)
	must(err)
	handler, err := httpapi.NewRouter(svc, cfg)
	must(err)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Server starting", "address", cfg.Server.Addr, "strategy", cfg.Strategy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "Shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr(shutdownCtx, "Server shutdown failed", err)
	}
	_ = logger.Shutdown(shutdownCtx)
}
