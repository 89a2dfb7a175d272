package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/api"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/setup"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/setup/logger"
	"github.com/rs/cors"
)

func main() {
	// Load env
	envErr := godotenv.Load()

	cfg := setup.LoadConfig()
	log := logger.New(cfg.LogLevel, true)
	if envErr != nil {
		log.Warn().Msg("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup.Wire(ctx, cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	if deps.Watcher != nil {
		go func() {
			if err := deps.Watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Config watcher stopped")
			}
		}()
	}

	// API
	var auditor api.Auditor
	if deps.Auditor != nil {
		auditor = deps.Auditor
	}
	handler := api.NewHandler(deps.System, auditor, &log)

	container := restful.NewContainer()
	filters := middleware.NewFilters(&log)
	container.Filter(filters.Logger)
	container.Filter(filters.RecoverPanic)
	api.RegisterRoutes(container, handler)
	api.RegisterDocs(container)
	api.RegisterMetrics(container, deps.Registry)

	// CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	// Server
	port := os.Getenv("GUARD_AGENT_API_PORT")
	if port == "" {
		port = "18082"
	}

	addr := fmt.Sprintf(":%s", port)
	server := &http.Server{
		Addr:              addr,
		Handler:           corsHandler.Handler(container),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("address", addr).Int("rails", len(deps.System.Rails())).Msg("Starting Guard Agent API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := deps.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to release dependencies")
	}

	log.Info().Msg("Guard Agent API stopped")
}
