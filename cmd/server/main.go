package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dragonseats/optimizer/config"
	"github.com/dragonseats/optimizer/internal/handler"
	"github.com/dragonseats/optimizer/internal/middleware"
	"github.com/dragonseats/optimizer/internal/repository"
	"github.com/dragonseats/optimizer/internal/solver"
	"github.com/dragonseats/optimizer/pkg/cache"
	"github.com/dragonseats/optimizer/pkg/db"
	"github.com/dragonseats/optimizer/pkg/maps"
)

const (
	serviceName    = "dragon-seats-optimizer"
	serviceVersion = "0.1.0"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// ── Error telemetry (optional) ──────────────────────
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.Sentry.DSN,
			Release: serviceName + "@" + serviceVersion,
		}); err != nil {
			log.Printf("sentry init failed, continuing without telemetry: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Println("✓ Sentry telemetry enabled")
		}
	}

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("✓ PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ── Initialize layers ───────────────────────────────
	distanceRepo := repository.NewDistanceRepository(pgPool, redisClient)
	weekRepo := repository.NewWeekRepository(pgPool)
	runRepo := repository.NewRunRepository(pgPool)

	mapsClient := maps.NewClient(cfg.Maps)
	if mapsClient.Enabled() {
		log.Println("✓ Distance provider configured")
	} else {
		log.Println("· Distance provider disabled, haversine estimates only")
	}

	matrixBuilder := solver.NewMatrixBuilder(distanceRepo, mapsClient, cfg.Solver.CacheTolerance)
	optimizerSvc := solver.NewService(weekRepo, runRepo, matrixBuilder, cfg.Solver)

	optimizeHandler := handler.NewOptimizeHandler(optimizerSvc)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)
	router.HandleFunc("/optimize", optimizeHandler.Optimize).Methods(http.MethodPost)

	h := middleware.CORS(middleware.RequestLogger(middleware.Recoverer(router)))

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Service  string            `json:"service"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG and Redis connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Version:  serviceVersion,
			Service:  serviceName,
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
