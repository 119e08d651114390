package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/pkg/cache"
	"github.com/smppware/hlrgate/pkg/config"
	"github.com/smppware/hlrgate/pkg/gateway"
	"github.com/smppware/hlrgate/pkg/hlr"
	"github.com/smppware/hlrgate/pkg/metrics"
	"github.com/smppware/hlrgate/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SMPP HLR gateway",
	Long: `Start the gateway: bind the SMPP listener, connect to Redis and
(optionally) PostgreSQL, warm the lookup cache, and serve until
interrupted.

Redis and, when enabled, the database must be reachable at startup. A
failed cache warmup is logged and the gateway starts anyway.

Examples:
  # Start with the default config location
  hlrgate serve

  # Start with a custom config file
  hlrgate serve --config /etc/hlrgate/config.yaml

  # Override a single setting from the environment
  HLRGATE_LOGGING_LEVEL=DEBUG hlrgate serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("hlrgate starting",
		"version", Version,
		"log_level", cfg.Logging.Level,
		"log_format", cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics come up first so startup of the remaining components is
	// already observable.
	metricsServer := metrics.NewServer(cfg.Metrics.ServerConfig())
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}()

	redisCache, err := cache.NewRedisCache(ctx, cfg.CacheConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		if err := redisCache.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}()

	var recorder hlr.Recorder
	if cfg.Database.Enabled {
		db, err := store.New(&cfg.Database.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("database close error", "error", err)
			}
		}()

		if cfg.Warmup.Enabled {
			if _, err := hlr.Warmup(ctx, redisCache, db, cfg.Warmup.HLRWarmupConfig()); err != nil {
				logger.Warn("cache warmup failed, starting cold", "error", err)
			}
		}

		queue := store.NewAppendQueue(db, cfg.Database.Queue)
		defer queue.Close()
		recorder = queue
	} else {
		logger.Info("database disabled, lookups will not be persisted")
	}

	client := hlr.NewClient(cfg.HLR.ClientConfig())
	resolver := hlr.NewResolver(client, redisCache, recorder, cfg.HLR.ResolverConfig())

	services := &gateway.Services{
		Resolver: resolver,
		Cache:    redisCache,
		Recorder: recorder,
	}
	gw := gateway.NewServer(cfg.SMPPServerConfig(), services)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- gw.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("gateway shutdown error", "error", err)
			return err
		}
		logger.Info("gateway stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("gateway error", "error", err)
			return err
		}
	}

	return nil
}
