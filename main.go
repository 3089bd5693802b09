package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/config"
	"github.com/staylens-io/staylens-engine/pkg/crypto"
	"github.com/staylens-io/staylens-engine/pkg/database"
	"github.com/staylens-io/staylens-engine/pkg/handlers"
	"github.com/staylens-io/staylens-engine/pkg/logging"
	"github.com/staylens-io/staylens-engine/pkg/middleware"
	"github.com/staylens-io/staylens-engine/pkg/oauth"
	"github.com/staylens-io/staylens-engine/pkg/repositories"
	"github.com/staylens-io/staylens-engine/pkg/services"
	"github.com/staylens-io/staylens-engine/pkg/sources/registry"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	cipher, err := crypto.NewTokenCipher(cfg.TokenCipherKey)
	if err != nil {
		logger.Fatal("Failed to create token cipher", zap.Error(err))
	}
	stateCodec := oauth.NewStateCodec(cfg.StateSigningKey, oauth.DefaultStateTTL)
	providers := oauth.NewRegistry(cfg)

	up := upstream.NewClient(upstream.Options{
		Timeout:       time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		RatePerSecond: cfg.Upstream.RatePerSecond,
		RateBurst:     cfg.Upstream.RateBurst,
	}, logger.Named("upstream"))
	srcs := registry.New(up, cfg, logger.Named("sources"))

	connRepo := repositories.NewConnectionRepository(db)
	tokens := services.NewTokenManager(connRepo, providers, cipher, logger.Named("tokens"))
	connections := services.NewConnectionService(connRepo, providers, srcs, tokens, cipher, stateCodec, logger.Named("connections"))
	metrics := services.NewMetricsService(tokens, srcs, logger.Named("metrics"))

	// Authenticated API routes
	apiMux := http.NewServeMux()
	handlers.NewOAuthHandler(connections, logger.Named("oauth")).RegisterRoutes(apiMux)
	handlers.NewConnectionHandler(connections, logger.Named("connections")).RegisterRoutes(apiMux)
	handlers.NewMetricsHandler(metrics, logger.Named("metrics")).RegisterRoutes(apiMux)

	// Public routes: health plus the provider redirect endpoint
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger.Named("health")).RegisterRoutes(mux)
	handlers.NewOAuthHandler(connections, logger.Named("oauth")).RegisterPublicRoutes(mux)
	mux.Handle("/api/", middleware.RequireSession(cfg.Auth, logger.Named("auth"))(apiMux))

	server := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: middleware.RequestLogger(logger.Named("http"))(mux),
	}

	go func() {
		logger.Info("Starting staylens-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
