package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"harvestdash/internal/amqp"
	"harvestdash/internal/cache"
	apphttp "harvestdash/internal/http"
	"harvestdash/internal/log"
	"harvestdash/internal/refresh"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = 5 * time.Minute
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh loop and the dashboard API",
		Long: `Fetch the configured source on a fixed interval, keep the assembled
dashboard in memory and serve it as JSON. With AMQP_URL set, every live
refresh is announced on the exchange and messages on the refresh queue
trigger a manual refresh.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger := appCfg, appLogger

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.close(logger)

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(p.fallback.Cache())
	cacheManager.StartCleanup(cacheCleanupInterval)
	defer cacheManager.Stop()

	var driverOpts []refresh.Option
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Events are optional; the dashboard keeps working without them.
			logger.ErrorContext(ctx, "Failed to connect to AMQP broker, refresh events disabled",
				log.NewFields().WithOperation(log.OpStartup).WithError(err).ToSlice()...)
		} else {
			defer events.Close()
			driverOpts = append(driverOpts, refresh.WithListener(amqp.RefreshListener(events, logger)))
		}
	}

	driver := p.driver(cfg, logger, driverOpts...)
	if err := driver.Start(ctx); err != nil {
		return err
	}

	if events != nil {
		go func() {
			err := events.ConsumeRefreshRequests(ctx, amqp.RefreshHandler(driver, logger))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Refresh request consumer stopped", "error", err)
			}
		}()
	}

	srvOpts := apphttp.Options{
		Logger:           logger,
		PreviewRows:      cfg.PreviewRows,
		RefreshRateLimit: cfg.RefreshRateLimit,
		CacheManager:     cacheManager,
		TrustedProxies:   cfg.TrustedProxies,
	}
	if p.store != nil {
		srvOpts.Snapshots = p.store
	}
	srv := apphttp.NewServer(":"+cfg.Port, driver, srvOpts)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting harvestdash server",
			"port", cfg.Port,
			log.FieldSource, p.source.Name(),
			"interval", cfg.RefreshInterval)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			shutdown(srv, driver, logger)
			return err
		}
	}

	shutdown(srv, driver, logger)
	logger.Info("Server stopped gracefully")
	return nil
}

func shutdown(srv *apphttp.Server, driver *refresh.Driver, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := driver.Stop(ctx); err != nil {
		logger.Error("Refresh driver shutdown error", "error", err)
	}
}
