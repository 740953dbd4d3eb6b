/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shipping rate engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env + environment, then parse command-line flags
  2. Initialize SQLite store
  3. Load the zone snapshot (zone YAML + pincode table)
  4. Build serviceability checker (HTTP or static, Redis-cached if configured)
  5. Wire registry, calculator, ranking engine, importer, quote ledger
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port    HTTP server port (RATE_HTTP_PORT, default: 8080)
  -db      SQLite database path (RATE_DB_PATH, default: rates.db)
           Use ":memory:" for in-memory database
  -demo    Seed the pincode directory when it is empty

ENVIRONMENT:
  See config/config.go for the full RATE_* list.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close Redis and database connections
  4. Exit

EXAMPLES:
  ./server -db="./data/rates.db"
  RATE_REDIS_ADDR=localhost:6379 ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment variables
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/rate-engine/api"
	"github.com/warp/rate-engine/config"
	"github.com/warp/rate-engine/importer"
	"github.com/warp/rate-engine/pricing"
	"github.com/warp/rate-engine/quote"
	"github.com/warp/rate-engine/ranking"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/serviceability"
	"github.com/warp/rate-engine/store/sqlite"
	"github.com/warp/rate-engine/zone"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	demo := flag.Bool("demo", false, "seed demo pincodes when the directory is empty")
	flag.Parse()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("path", *dbPath), zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if *demo {
		if err := seedDemoPincodes(ctx, store); err != nil {
			logger.Fatal("failed to seed demo pincodes", zap.Error(err))
		}
	}

	// Zone snapshot
	resolver := zone.NewResolver(config.FileZoneProvider{Path: cfg.ZoneConfigPath}, store)
	if err := resolver.Reload(ctx); err != nil {
		logger.Fatal("failed to load zones", zap.Error(err))
	}

	// Serviceability
	var checker serviceability.Checker = serviceability.NewStatic()
	if cfg.ServiceabilityURL != "" {
		checker = serviceability.NewHTTPChecker(cfg.ServiceabilityURL, &http.Client{Timeout: cfg.ServiceabilityTimeout})
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable; serviceability cache will miss", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		checker = serviceability.NewCachedChecker(checker, rdb, cfg.CacheTTL, logger)
	}

	// Domain services
	ledger := quote.NewLedger(store)
	registry := ratecard.NewRegistry(store, store, ledger, logger)
	calc := pricing.NewCalculator(registry, resolver, store, logger)
	ranker := ranking.NewEngine(calc, store, checker, ranking.Config{
		MaxParallel:  cfg.RankParallel,
		CheckTimeout: cfg.ServiceabilityTimeout,
	}, logger)
	imp := importer.New(store, store, registry, importer.Defaults{GSTPercent: cfg.DefaultGST}, logger)

	handler := api.NewHandler(store, api.Services{
		Registry:   registry,
		Calculator: calc,
		Ranker:     ranker,
		Importer:   imp,
		Ledger:     ledger,
		Resolver:   resolver,
	}, logger)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.Int("port", *port), zap.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func seedDemoPincodes(ctx context.Context, store *sqlite.Store) error {
	existing, err := store.ListPincodes(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return store.SavePincodes(ctx, api.DemoPincodes)
}
