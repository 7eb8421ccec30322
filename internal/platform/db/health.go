package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

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

// Dependency is an extra backing service reported by HealthHandler, such as
// the Redis cache.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthReport is the body of GET /health/db.
type HealthReport struct {
	Status       string            `json:"status"`
	Storage      string            `json:"storage"`
	Pool         *PoolStats        `json:"pool,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthHandler pings the store and every dependency. A nil pool means the
// in-memory store is active. Any failure answers 503.
func HealthHandler(pool *pgxpool.Pool, deps ...Dependency) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		report := HealthReport{Status: "healthy", Storage: "memory"}
		checks := deps
		if pool != nil {
			report.Storage = "postgres"
			report.Pool = GetPoolStats(pool)
			checks = append([]Dependency{{Name: "postgres", Ping: pool.Ping}}, deps...)
		}
		return c.JSON(report.run(ctx, checks), report)
	}
}

func (r *HealthReport) run(ctx context.Context, checks []Dependency) int {
	if len(checks) == 0 {
		return http.StatusOK
	}
	r.Dependencies = make(map[string]string, len(checks))
	code := http.StatusOK
	for _, d := range checks {
		if err := d.Ping(ctx); err != nil {
			r.Dependencies[d.Name] = err.Error()
			r.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		r.Dependencies[d.Name] = "ok"
	}
	return code
}
