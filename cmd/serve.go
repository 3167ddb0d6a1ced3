package cmd

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/api"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/profiling"
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if pprofServer := profiling.StartPprofServer(log); pprofServer != nil {
		defer func() { _ = pprofServer.Close() }()
	}
	if pyro, pyroErr := profiling.StartPyroscope(cfg.Service.Name, cfg.Service.Version, log); pyroErr != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Pyroscope failed to start: %v\n", pyroErr)
	} else if pyro != nil {
		defer func() { _ = pyro.Stop() }()
	}

	log.Info("Starting portal API",
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
		logger.Bool("debug", cfg.Service.Debug),
		logger.Bool("database", cfg.Database.Enabled),
		logger.Bool("cache", cfg.Redis.Enabled),
	)

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start portal API", logger.Error(err))
		return err
	}
	defer a.Close()

	if err = a.server().Run(ctx); err != nil {
		log.Error("Server error", logger.Error(err))
		return err
	}

	log.Info("Portal API exited cleanly")
	return nil
}

func (a *app) server() *api.Server {
	handler := api.NewHandler(a.services, a.cache)
	routes := api.RouteOptions{
		RequestTimeout: a.cfg.Service.RequestTimeout,
		ExportTimeout:  a.cfg.Service.ExportTimeout,
		ExportLimiter:  api.NewExportLimiter(a.cfg.Exports),
	}

	builder := api.NewServerBuilder(a.cfg.Service.Name, a.cfg.Service.Port).
		WithLogger(a.log).
		WithDebug(a.cfg.Service.Debug).
		WithVersion(a.cfg.Service.Version).
		WithTimeouts(api.DefaultReadTimeout, api.DefaultWriteTimeout, api.DefaultIdleTimeout).
		WithCORS(a.cfg.CORS).
		WithHealthCheck("elasticsearch", api.ElasticsearchHealthChecker(a.es.Health)).
		WithRoutes(func(router *gin.Engine) {
			api.SetupRoutes(router, handler, routes)
		})

	if a.cfg.Metrics.Enabled {
		builder.WithMetrics(a.metrics, a.cfg.Metrics.Path)
	}
	if a.downloads != nil {
		builder.WithHealthCheck("database", api.DatabaseHealthChecker(a.downloads.Ping))
	}
	if a.cache != nil {
		builder.WithHealthCheck("redis", api.RedisHealthChecker(a.cache.Ping))
	}

	return builder.Build()
}
