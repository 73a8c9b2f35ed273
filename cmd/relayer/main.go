package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Illuminfti/ika-tensei-relay/pkg/config"
	"github.com/Illuminfti/ika-tensei-relay/pkg/db"
	"github.com/Illuminfti/ika-tensei-relay/pkg/ika"
	"github.com/Illuminfti/ika-tensei-relay/pkg/near"
	"github.com/Illuminfti/ika-tensei-relay/pkg/pgutil"
	"github.com/Illuminfti/ika-tensei-relay/pkg/relayer"
	"github.com/Illuminfti/ika-tensei-relay/pkg/seal"
	"github.com/Illuminfti/ika-tensei-relay/pkg/solana"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Ika Tensei migration relayer")

	// A build with a broken codec must never relay anything.
	if err := seal.SelfTest(); err != nil {
		logger.Fatal("Seal codec self-test failed", zap.Error(err))
	}

	// Initialize database
	bdb, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	store := db.NewStore(bdb)
	defer store.Close()
	logger.Info("Database connection established")

	// Initialize chain clients
	originClient := near.NewClient(&cfg.Origin, logger)
	destClient := solana.NewClient(&cfg.Destination, logger)

	signerClient := ika.NewHTTPClient(&cfg.Signer, logger)
	coordinator, err := ika.NewCoordinator(signerClient, &cfg.Signer, logger)
	if err != nil {
		logger.Fatal("Failed to initialize signing coordinator", zap.Error(err))
	}

	// Start the relay engine first so HTTP handlers can reference it
	ctx := context.Background()
	engine := relayer.NewEngine(cfg, store, originClient, destClient, coordinator, logger)
	if err := engine.Start(ctx); err != nil {
		logger.Fatal("Failed to start relay engine", zap.Error(err))
	}

	// Setup HTTP server for the status API and metrics
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (liveness)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness endpoint - 503 while the database is unreachable
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := bdb.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	// Metrics endpoint
	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled")
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handleGetStatus(engine, logger))
		r.Get("/seals", handleListSeals(store, logger))
		r.Get("/seals/{hash}", handleGetSeal(store, logger))
	})

	// Start HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	engine.Stop(shutdownCtx)

	logger.Info("Relayer stopped")
}

func handleGetStatus(engine *relayer.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := engine.Snapshot(r.Context())
		if err != nil {
			logger.Error("Failed to build status snapshot", zap.Error(err))
			http.Error(w, "Failed to build status snapshot", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleListSeals(store *db.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seals, err := store.ListSealRecords(r.Context(), 100)
		if err != nil {
			logger.Error("Failed to list seals", zap.Error(err))
			http.Error(w, "Failed to list seals", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"seals": seals}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleGetSeal(store *db.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")
		rec, err := store.GetSealRecord(r.Context(), hash)
		if err != nil {
			logger.Error("Failed to get seal", zap.Error(err), zap.String("hash", hash))
			http.Error(w, "Failed to get seal", http.StatusInternalServerError)
			return
		}
		if rec == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rec); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}
