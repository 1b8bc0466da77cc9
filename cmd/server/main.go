package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/uaarena/session-engine/internal/auth"
	"github.com/uaarena/session-engine/internal/config"
	"github.com/uaarena/session-engine/internal/deck"
	"github.com/uaarena/session-engine/internal/game"
	"github.com/uaarena/session-engine/internal/server"
	"github.com/uaarena/session-engine/internal/storage"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting session engine",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	err = run(cfg, logger)
	if err != nil {
		logger.Error("session engine failed", zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run starts every component and blocks until a shutdown signal arrives.
// Startup errors are returned so that deferred cleanup still runs.
func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("auth.jwt_secret must be configured: %w", err)
	}

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open %s session store: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close session store", zap.Error(err))
		}
	}()
	logger.Info("session store initialized",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("cache", cfg.Storage.Cache),
	)

	var library *deck.Library
	if cfg.Decks.Path != "" {
		library, err = deck.Load(cfg.Decks.Path)
		if err != nil {
			return fmt.Errorf("load deck library %s: %w", cfg.Decks.Path, err)
		}
		logger.Info("deck library loaded", zap.Strings("decks", library.Names()))
	}

	opts := []game.Option{game.WithStore(store)}
	if cfg.Replay.Enabled {
		opts = append(opts, game.WithReplayRecorder(game.NewReplayRecorder(logger, cfg.Replay.Directory, cfg.Replay.MaxStates)))
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}

	engine, err := game.NewEngine(logger, cfg.Rules, opts...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	restored, err := engine.Restore(ctx)
	if err != nil {
		logger.Warn("failed to restore sessions", zap.Error(err))
	}
	logger.Info("engine initialized", zap.Int("restored_sessions", restored))

	if cfg.Sessions.CleanupInterval > 0 {
		go engine.CleanupLoop(ctx, cfg.Sessions.CleanupInterval, cfg.Sessions.MaxAge)
	}

	hub := server.NewHub(logger)
	go hub.Run(ctx)
	engine.SetNotificationHandler(hub.Notify)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.GRPCAddress, err)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddress,
		Handler: server.NewAPI(engine, verifier, library, hub, logger).Router(),
	}
	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTPAddress))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	grpcServer := server.NewGRPCServer(engine, verifier, logger)
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPCAddress))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	grpcServer.Stop(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	cancel()

	logger.Info("session engine stopped")
	return nil
}

// openStore builds the configured store, optionally fronted by a Redis cache.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
	redisOpts := storage.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.RedisTTL,
	}

	var primary storage.Store
	var err error
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		primary, err = storage.NewSQLite(cfg.SQLitePath)
	case config.DriverPostgres:
		primary, err = storage.NewPostgres(ctx, cfg.PostgresDSN)
	case config.DriverRedis:
		primary, err = storage.NewRedis(ctx, redisOpts)
	default:
		primary = storage.NewMemory()
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache != config.DriverRedis {
		return primary, nil
	}
	cache, err := storage.NewRedis(ctx, redisOpts)
	if err != nil {
		primary.Close()
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return storage.NewCached(primary, cache, logger), nil
}

func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
