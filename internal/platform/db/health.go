package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/httpx"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// Pinger is the part of the pool the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// HealthHandler answers GET /health/db. The database is considered healthy
// when a ping completes within timeout.
func HealthHandler(p Pinger, timeout time.Duration) echo.HandlerFunc {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, httpx.Payload{
				"success": false,
				"message": "database unreachable",
				"status":  "unhealthy",
			})
		}

		payload := httpx.Payload{"status": "healthy"}
		if pool, ok := p.(*pgxpool.Pool); ok {
			payload["pool"] = GetPoolStats(pool)
		}
		return httpx.JSON(c, http.StatusOK, "database reachable", payload)
	}
}

// LivenessHandler answers GET /health without touching the database.
func LivenessHandler(startedAt time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		return httpx.JSON(c, http.StatusOK, "", httpx.Payload{
			"status": "ok",
			"uptime": time.Since(startedAt).Round(time.Second).String(),
		})
	}
}
