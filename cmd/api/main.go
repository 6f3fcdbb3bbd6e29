package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"call-insights-go/internal/api"
	"call-insights-go/internal/config"
	"call-insights-go/internal/ledger"
	"call-insights-go/internal/logger"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "call-insights-api").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration error")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.WithError(err).Fatal("cannot create output directory")
	}
	store, err := api.NewStore(cfg.OutputDir)
	if err != nil {
		log.WithError(err).Fatal("cannot load artifacts")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Watch(ctx); err != nil {
		log.WithError(err).Warn("artifact watcher unavailable, serving cached listings")
	}

	var led *ledger.Ledger
	if cfg.LedgerPath != "" {
		led, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			log.WithError(err).Warn("ledger unavailable, /api/runs disabled")
			led = nil
		} else {
			defer led.Close()
		}
	}

	router := api.Router(store, led, os.Getenv("CORS_ALLOWED"))

	addr := ":" + envOr("PORT", "8080")
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).WithField("output_dir", cfg.OutputDir).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
