package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openduel/duel-server-go/internal/cards"
	"github.com/openduel/duel-server-go/internal/config"
	"github.com/openduel/duel-server-go/internal/duel"
	"github.com/openduel/duel-server-go/internal/server"
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
	defer logger.Sync()

	logger.Info("starting duel server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	catalog := cards.NewStarterCatalog()
	logger.Info("card catalog initialized", zap.Int("cards", catalog.Size()))

	matchCfg := duel.MatchConfig{
		StartingHealth:  cfg.Match.StartingHealth,
		ManaCap:         cfg.Match.ManaCap,
		OpeningHandSize: cfg.Match.OpeningHandSize,
		DeckSize:        cfg.Match.DeckSize,
		BoardSlots:      cfg.Match.BoardSlots,
		GracePeriod:     cfg.Match.GracePeriod,
		JournalDepth:    cfg.Match.JournalDepth,
	}
	matchMgr := duel.NewManager(matchCfg, catalog, logger)
	logger.Info("match manager initialized",
		zap.Duration("grace_period", matchCfg.GracePeriod),
	)

	srv := server.New(cfg.Server, matchMgr, logger)

	// Live reload: tuning the grace period takes effect for matches
	// created after the change.
	if err := config.Watch(*configPath, func(fresh *config.Config) {
		matchMgr.SetGracePeriod(fresh.Match.GracePeriod)
		logger.Info("configuration reloaded",
			zap.Duration("grace_period", fresh.Match.GracePeriod),
		)
	}); err != nil {
		logger.Warn("config watch disabled", zap.Error(err))
	}

	go func() {
		if serveErr := srv.Start(); serveErr != nil {
			logger.Error("websocket server error", zap.Error(serveErr))
		}
	}()

	logger.Info("duel server initialized",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
		zap.String("ws_path", cfg.Server.WSPath),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("duel server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
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
