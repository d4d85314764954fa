package main

import (
	"context"
	"fmt"
	"time"

	"harvestdash/internal/backend"
	"harvestdash/internal/config"
	"harvestdash/internal/dashboard"
	"harvestdash/internal/log"
	"harvestdash/internal/present"
	"harvestdash/internal/refresh"
	"harvestdash/internal/sheets"
	"harvestdash/internal/sheets/memory"
	"harvestdash/internal/storage"
)

// pipeline holds what every command needs to produce a dashboard: the
// configured source, the fallback policy and an optional snapshot store.
type pipeline struct {
	source   sheets.SnapshotSource
	fallback *sheets.Fallback
	store    *storage.SQLiteRepository
	cleanups []func() error
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *log.Logger) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger, time.Now).CreateSource(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s source: %w", bcfg.Type, err)
	}

	p := &pipeline{source: res.Source}
	if res.Cleanup != nil {
		p.cleanups = append(p.cleanups, res.Cleanup)
	}

	opts := []sheets.FallbackOption{sheets.WithLogger(logger)}
	if cfg.SQLiteDBPath != "" {
		store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
		if err != nil {
			p.close(logger)
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		p.store = store
		p.cleanups = append(p.cleanups, store.Close)
		opts = append(opts, sheets.WithStore(store))
	}

	p.fallback = sheets.NewFallback(cfg.LastGoodTTL, memory.Demo, opts...)
	if err := p.fallback.Restore(ctx, p.source.Name()); err != nil {
		logger.WarnContext(ctx, "Failed to restore last good snapshot",
			log.NewFields().WithOperation(log.OpStartup).WithError(err).ToSlice()...)
	}
	return p, nil
}

func (p *pipeline) driver(cfg *config.Config, logger *log.Logger, opts ...refresh.Option) *refresh.Driver {
	opts = append([]refresh.Option{refresh.WithLogger(logger)}, opts...)
	return refresh.New(p.source, p.fallback, driverConfig(cfg), opts...)
}

// close releases resources in reverse order of acquisition.
func (p *pipeline) close(logger *log.Logger) {
	for i := len(p.cleanups) - 1; i >= 0; i-- {
		if err := p.cleanups[i](); err != nil {
			logger.Warn("Cleanup failed", log.NewFields().WithOperation(log.OpShutdown).WithError(err).ToSlice()...)
		}
	}
	p.cleanups = nil
}

func driverConfig(cfg *config.Config) refresh.Config {
	f := present.DefaultFormatter()
	if cfg.CurrencySymbol != "" {
		f.Currency = cfg.CurrencySymbol
	}
	preview := cfg.PreviewRows
	if preview <= 0 {
		preview = dashboard.DefaultPreviewRows
	}
	return refresh.Config{
		Interval:     cfg.RefreshInterval,
		Timeout:      cfg.FetchTimeout,
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		PreviewRows:  preview,
		Formatter:    f,
	}
}
