package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/api"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/cache"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/database"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/metrics"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/service"
)

// app holds the connections and services shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Metrics
	es      *elasticsearch.Client
	db      *sqlx.DB
	cache   *cache.Cache

	downloads *database.DownloadRepository
	services  api.Services
	search    *service.SearchService
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.GetConfigPath("config.yml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration from %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// newApp connects to Elasticsearch and, when enabled, PostgreSQL and Redis.
// A Redis failure only disables the response cache.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	es, err := elasticsearch.NewClient(cfg.Elasticsearch, log, elasticsearch.WithMetrics(a.metrics))
	if err != nil {
		return nil, err
	}
	if err = es.Connect(ctx); err != nil {
		return nil, err
	}
	a.es = es

	if cfg.Database.Enabled {
		db, dbErr := database.NewPostgresConnection(ctx, cfg.Database)
		if dbErr != nil {
			return nil, fmt.Errorf("connect to database: %w", dbErr)
		}
		a.db = db
		log.Info("Connected to PostgreSQL",
			logger.String("host", cfg.Database.Host),
			logger.String("database", cfg.Database.Name),
		)
	}

	if cfg.Redis.Enabled {
		client, redisErr := cache.NewClient(ctx, cfg.Redis)
		if redisErr != nil {
			log.Warn("Response cache disabled", logger.String("address", cfg.Redis.Address), logger.Error(redisErr))
		} else {
			a.cache = cache.New(client, cfg.Redis, a.metrics, log)
		}
	}

	a.wireServices()
	return a, nil
}

func (a *app) wireServices() {
	settings := service.SettingsFromConfig(a.cfg)
	a.search = service.NewSearchService(a.es, a.es, settings, service.ExportSettingsFromConfig(a.cfg), a.metrics)

	a.services = api.Services{
		Dashboard:  service.NewDashboardService(a.es, settings),
		Search:     a.search,
		Buyers:     service.NewBuyerService(a.es, settings),
		Records:    service.NewRecordService(a.es, settings),
		Statistics: service.NewStatisticsService(a.es, settings),
	}
	if a.db != nil {
		a.downloads = database.NewDownloadRepository(a.db)
		a.services.Releases = service.NewReleaseService(database.NewReleaseRepository(a.db), settings)
		a.services.Downloads = service.NewDownloadService(a.downloads, a.cfg.Downloads)
	}
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.log.Warn("Failed to close Redis client", logger.Error(err))
	}
	if err := database.Close(a.db); err != nil {
		a.log.Warn("Failed to close database", logger.Error(err))
	}
}
