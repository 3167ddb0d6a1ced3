package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents the status of a health check.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const healthCheckTimeout = 5 * time.Second

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of an individual health check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthChecker performs one dependency check.
type HealthChecker func(ctx context.Context) CheckResult

// registerHealthRoutes adds GET and HEAD /health. HEAD never touches dependencies.
func registerHealthRoutes(router *gin.Engine, service, version string, started time.Time, checks map[string]HealthChecker) {
	router.GET("/health", healthHandler(service, version, started, checks))
	router.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
}

func healthHandler(service, version string, started time.Time, checks map[string]HealthChecker) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		response := HealthResponse{
			Status:  HealthStatusHealthy,
			Service: service,
			Version: version,
			Uptime:  time.Since(started).Round(time.Second).String(),
		}

		if len(names) > 0 {
			response.Checks = make(map[string]CheckResult, len(names))
		}
		for _, name := range names {
			result := checks[name](ctx)
			response.Checks[name] = result

			switch {
			case result.Status == HealthStatusUnhealthy:
				response.Status = HealthStatusUnhealthy
			case result.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy:
				response.Status = HealthStatusDegraded
			}
		}

		statusCode := http.StatusOK
		if response.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, response)
	}
}

// pingChecker reports a failed ping with the given status.
func pingChecker(name string, failure HealthStatus, ping func(context.Context) error) HealthChecker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		err := ping(ctx)
		latency := time.Since(start).String()

		if err != nil {
			return CheckResult{Status: failure, Message: name + " connection failed", Latency: latency}
		}
		return CheckResult{Status: HealthStatusHealthy, Message: name + " connection OK", Latency: latency}
	}
}

// DatabaseHealthChecker degrades the service when PostgreSQL is unreachable.
func DatabaseHealthChecker(ping func(context.Context) error) HealthChecker {
	return pingChecker("Database", HealthStatusDegraded, ping)
}

// RedisHealthChecker degrades the service when Redis is unreachable.
func RedisHealthChecker(ping func(context.Context) error) HealthChecker {
	return pingChecker("Redis", HealthStatusDegraded, ping)
}

// ElasticsearchHealthChecker maps cluster health onto the check: red or unreachable is
// unhealthy, yellow is degraded.
func ElasticsearchHealthChecker(health func(context.Context) (string, error)) HealthChecker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		status, err := health(ctx)
		latency := time.Since(start).String()

		switch {
		case err != nil:
			return CheckResult{Status: HealthStatusUnhealthy, Message: "Elasticsearch connection failed", Latency: latency}
		case status == "red":
			return CheckResult{Status: HealthStatusUnhealthy, Message: "Elasticsearch cluster is red", Latency: latency}
		case status == "yellow":
			return CheckResult{Status: HealthStatusDegraded, Message: "Elasticsearch cluster is yellow", Latency: latency}
		default:
			return CheckResult{Status: HealthStatusHealthy, Message: "Elasticsearch connection OK", Latency: latency}
		}
	}
}
