package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/metrics"
)

// ServerBuilder provides a fluent API for building HTTP servers.
type ServerBuilder struct {
	config       *ServerConfig
	logger       logger.Logger
	setupRoutes  func(*gin.Engine)
	healthChecks map[string]HealthChecker
	startedAt    time.Time
}

// NewServerBuilder creates a new server builder for the named service.
func NewServerBuilder(serviceName string, port int) *ServerBuilder {
	return &ServerBuilder{
		config:       &ServerConfig{ServiceName: serviceName, Port: port},
		healthChecks: make(map[string]HealthChecker),
	}
}

// WithLogger sets the logger.
func (b *ServerBuilder) WithLogger(log logger.Logger) *ServerBuilder {
	b.logger = log
	return b
}

// WithDebug enables or disables gin debug mode.
func (b *ServerBuilder) WithDebug(debug bool) *ServerBuilder {
	b.config.Debug = debug
	return b
}

// WithVersion sets the version reported by /health.
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.config.ServiceVersion = version
	return b
}

// WithTimeouts sets the read, write and idle timeouts of the HTTP server.
func (b *ServerBuilder) WithTimeouts(read, write, idle time.Duration) *ServerBuilder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	b.config.IdleTimeout = idle
	return b
}

// WithCORS configures CORS.
func (b *ServerBuilder) WithCORS(cfg config.CORSConfig) *ServerBuilder {
	b.config.CORS = cfg
	return b
}

// WithMetrics records request metrics and serves them at path.
func (b *ServerBuilder) WithMetrics(m *metrics.Metrics, path string) *ServerBuilder {
	b.config.Metrics = m
	b.config.MetricsPath = path
	return b
}

// WithHealthCheck adds a named health check.
func (b *ServerBuilder) WithHealthCheck(name string, checker HealthChecker) *ServerBuilder {
	b.healthChecks[name] = checker
	return b
}

// WithStartTime sets the instant uptime is measured from.
func (b *ServerBuilder) WithStartTime(t time.Time) *ServerBuilder {
	b.startedAt = t
	return b
}

// WithRoutes sets the route setup function.
func (b *ServerBuilder) WithRoutes(setupRoutes func(*gin.Engine)) *ServerBuilder {
	b.setupRoutes = setupRoutes
	return b
}

// Build creates the server with health routes ahead of the service routes.
func (b *ServerBuilder) Build() *Server {
	if b.logger == nil {
		b.logger = logger.Must(logger.Config{
			Level:       "info",
			Development: b.config.Debug,
		})
	}
	if b.startedAt.IsZero() {
		b.startedAt = time.Now()
	}

	wrapped := func(router *gin.Engine) {
		registerHealthRoutes(router, b.config.ServiceName, b.config.ServiceVersion, b.startedAt, b.healthChecks)
		if b.setupRoutes != nil {
			b.setupRoutes(router)
		}
	}

	return NewServer(b.config, b.logger, wrapped)
}
