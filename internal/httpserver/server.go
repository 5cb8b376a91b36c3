// Package httpserver provides the process's external surface: health and
// readiness checks plus a Prometheus scrape endpoint, built on the same
// Echo conventions used across the rest of the stack. The AAS repository
// API itself (the HTTP/WebSocket verbs mapped onto shells, submodels, and
// concept descriptions) is a separate adapter layered on top of the core
// components exported from internal/ — this package only stands up the
// operational surface every deployment needs regardless of which API
// adapter it runs.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Config configures the Echo server.
type Config struct {
	Port            int
	BodyLimit       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimit       float64 // requests/sec across all routes; 0 disables
}

// DefaultConfig returns sensible defaults: a 10M body limit, 30s
// read/write timeouts, and no rate limiting.
func DefaultConfig(port int) Config {
	return Config{
		Port:            port,
		BodyLimit:       "10M",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// HealthChecker reports whether a dependency is currently reachable. The
// registered checkers run one after another; a failing one does not stop
// the others from being run and reported.
type HealthChecker func(ctx context.Context) error

// HealthResponse is the health endpoint's JSON body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// New builds an Echo instance with standard middleware, a health endpoint
// backed by checkers, and a Prometheus scrape endpoint backed by reg.
func New(config Config, serviceName string, reg *prometheus.Registry, checkers map[string]HealthChecker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	if config.BodyLimit != "" {
		e.Use(middleware.BodyLimit(config.BodyLimit))
	}
	e.Use(middleware.RequestID())
	if config.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(config.RateLimit))))
	}

	e.GET("/health", healthHandler(serviceName, checkers))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return e
}

func healthHandler(serviceName string, checkers map[string]HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := "healthy"
		checks := make(map[string]string, len(checkers))
		for name, check := range checkers {
			if err := check(c.Request().Context()); err != nil {
				status = "degraded"
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, HealthResponse{Status: status, Service: serviceName, Checks: checks})
	}
}

// Start runs e on config.Port until the process is signaled to stop;
// ErrServerClosed from a graceful Shutdown is not treated as a failure.
func Start(e *echo.Echo, config Config) error {
	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpserver: serve: %w", err)
	}
	return nil
}

// Shutdown stops e, giving in-flight requests up to config.ShutdownTimeout
// to finish.
func Shutdown(e *echo.Echo, config Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	return nil
}
