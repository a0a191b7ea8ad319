package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/vjranagit/gaitmetrics/internal/config"
	"github.com/vjranagit/gaitmetrics/pkg/analytics"
	"github.com/vjranagit/gaitmetrics/pkg/dashboard"
	"github.com/vjranagit/gaitmetrics/pkg/service"
	"github.com/vjranagit/gaitmetrics/pkg/storage"
)

// App bundles the long-lived components built from configuration
type App struct {
	Config   *config.Config
	Repo     storage.Repository
	Service  *service.Service
	Registry *prometheus.Registry
}

// New opens storage and wires the service
func New(cfg *config.Config) (*App, error) {
	repo, err := storage.NewRepository(cfg.ToStorageConfig())
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dash := dashboard.New(
		dashboard.DefaultCatalog(),
		analytics.NewRangeCalculator(cfg.ToRangeOptions()),
		analytics.NewProjector(""),
	)
	cache := dashboard.NewCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	svc := service.New(repo, dash, cache, service.NewMetrics(registry))

	log.Info().
		Str("storage_path", cfg.Storage.Path).
		Bool("in_memory", cfg.Storage.InMemory).
		Int("compression_level", cfg.Storage.CompressionLevel).
		Str("outlier_method", cfg.Analytics.OutlierMethod).
		Float64("outlier_k", cfg.Analytics.OutlierK).
		Msg("storage engine initialized")

	return &App{
		Config:   cfg,
		Repo:     repo,
		Service:  svc,
		Registry: registry,
	}, nil
}

// DashboardOptions returns the chart options configured for requests that name none
func (a *App) DashboardOptions() dashboard.Options {
	opts := dashboard.DefaultOptions()
	opts.Window = a.Config.Analytics.Window
	return opts
}

// Close releases storage
func (a *App) Close() error {
	return a.Repo.Close()
}
