package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/antoniostano/recall/internal/config"
	"github.com/antoniostano/recall/internal/convo"
	"github.com/antoniostano/recall/internal/genai"
	"github.com/antoniostano/recall/internal/history"
	"github.com/antoniostano/recall/internal/httpapi"
	"github.com/antoniostano/recall/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := history.NewStore(ctx, cfg.DatabaseURL, cfg.StoragePath, cfg.HistoryCap)
	if err != nil {
		log.Fatalf("history store init failed: %v", err)
	}
	defer store.Close()
	log.Printf("history store: %s", store.Mode())

	if fs, ok := store.(*history.FileStore); ok {
		fs.SetPersistHook(func(error) {
			metrics.PersistFailures.Inc()
		})
	}

	generator := genai.NewClient(cfg.GeminiURL, cfg.GeminiAPIKey, cfg.GenerateTimeout)
	if !generator.Configured() {
		log.Printf("no generation API key configured; replies will report the missing credential")
	}

	orchestrator := convo.NewOrchestrator(store, generator, metrics, cfg.ContextWindow)

	api := httpapi.New(cfg, orchestrator, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
