package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/agents"
	"github.com/LidetuK/captiviteee-sub000/internal/aggregator"
	"github.com/LidetuK/captiviteee-sub000/internal/api"
	"github.com/LidetuK/captiviteee-sub000/internal/audit"
	"github.com/LidetuK/captiviteee-sub000/internal/batch"
	"github.com/LidetuK/captiviteee-sub000/internal/config"
	"github.com/LidetuK/captiviteee-sub000/internal/filter"
	"github.com/LidetuK/captiviteee-sub000/internal/monitor"
	"github.com/LidetuK/captiviteee-sub000/internal/nlp"
	"github.com/LidetuK/captiviteee-sub000/internal/session"
	"github.com/LidetuK/captiviteee-sub000/internal/storage"
	"github.com/LidetuK/captiviteee-sub000/internal/websocket"
	"github.com/LidetuK/captiviteee-sub000/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting dialops engine")

	// Create context for background services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create store")
	}
	sink := audit.NewStoreSink(store, log.Logger)

	// Agent registry, reloaded from the store
	registry := agents.NewRegistry(store, log.Logger)
	if err := registry.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load agent configs")
	}

	// NLP collaborator: remote service when configured, simulator otherwise
	var understander nlp.Understander
	if cfg.NLPServiceURL != "" {
		understander = nlp.NewClient(cfg.NLPServiceURL, log.Logger)
		log.Info().Str("url", cfg.NLPServiceURL).Msg("using remote NLP service")
	} else {
		understander = nlp.NewSimulator(log.Logger)
		log.Info().Msg("using built-in NLP simulator")
	}

	// WebSocket hub and dashboard stream
	hub := websocket.NewHub(log.Logger)
	go hub.Run()
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)

	// Monitoring: alerts flow to the dashboards through the hub
	dispatcher := monitor.NewDispatcher(aggregator.AlertNotifier{Hub: hub, Logger: log.Logger}, cfg.AlertWindow, log.Logger)
	go dispatcher.Run(ctx)
	monitorService := monitor.NewService(dispatcher, log.Logger)

	// Call sessions
	sessions := session.NewManager(registry, filter.NewPipeline(log.Logger), understander, sink, cfg.NLPTimeout, log.Logger)
	sessions.SetEvaluator(monitorService)

	// Batch orchestration, resumed from the store
	batches := batch.NewManager(registry, sessions, batch.NewSimDriver(), store, sink, log.Logger)
	if err := batches.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load batch states")
	}
	if err := batches.Resume(); err != nil {
		log.Fatal().Err(err).Msg("failed to resume batches")
	}

	// Aggregator broadcasts a live snapshot every second
	aggregatorService := aggregator.NewAggregator(sessions, batches, monitorService, hub, time.Second, log.Logger)
	go aggregatorService.Start(ctx)

	// REST handlers
	agentsHandler := api.NewAgentsHandler(registry, log.Logger)
	sessionsHandler := api.NewSessionsHandler(sessions, monitorService, log.Logger)
	batchesHandler := api.NewBatchesHandler(batches, log.Logger)
	monitorHandler := api.NewMonitorHandler(monitorService, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler)
	r.Get("/ws", wsHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Route("/agents", func(r chi.Router) {
			r.Post("/", agentsHandler.Create)
			r.Get("/", agentsHandler.List)
			r.Get("/{agentId}", agentsHandler.Get)
			r.Put("/{agentId}", agentsHandler.Update)
			r.Delete("/{agentId}", agentsHandler.Delete)
		})
		r.Route("/calls", func(r chi.Router) {
			r.Post("/", sessionsHandler.StartCall)
			r.Get("/", sessionsHandler.ListActive)
			r.Get("/{callId}", sessionsHandler.Get)
			r.Post("/{callId}/input", sessionsHandler.ProcessInput)
			r.Post("/{callId}/end", sessionsHandler.EndCall)
			r.Get("/{callId}/alerts", sessionsHandler.CallAlerts)
		})
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", batchesHandler.Create)
			r.Get("/", batchesHandler.List)
			r.Get("/{batchId}", batchesHandler.Get)
			r.Put("/{batchId}", batchesHandler.Update)
			r.Delete("/{batchId}", batchesHandler.Delete)
			r.Get("/{batchId}/progress", batchesHandler.Progress)
			r.Get("/{batchId}/results", batchesHandler.Results)
			r.Get("/{batchId}/results/{callerId}", batchesHandler.Result)
			r.Post("/{batchId}/start", batchesHandler.Start)
			r.Post("/{batchId}/cancel", batchesHandler.Cancel)
		})
		r.Route("/monitors", func(r chi.Router) {
			r.Post("/", monitorHandler.CreateConfig)
			r.Get("/", monitorHandler.ListConfigs)
			r.Get("/{monitorId}", monitorHandler.GetConfig)
			r.Put("/{monitorId}", monitorHandler.UpdateConfig)
			r.Delete("/{monitorId}", monitorHandler.DeleteConfig)
		})
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", monitorHandler.ActiveAlerts)
			r.Post("/{alertId}/acknowledge", monitorHandler.AcknowledgeAlert)
			r.Post("/{alertId}/resolve", monitorHandler.ResolveAlert)
			r.Post("/{alertId}/ignore", monitorHandler.IgnoreAlert)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the aggregator and dispatcher loops
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"dialops-engine"}`)
}
