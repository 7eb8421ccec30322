package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pharmadesk/pharmadesk/internal/config"
	"github.com/pharmadesk/pharmadesk/internal/domain/billing"
	"github.com/pharmadesk/pharmadesk/internal/domain/dashboard"
	"github.com/pharmadesk/pharmadesk/internal/domain/directory"
	"github.com/pharmadesk/pharmadesk/internal/domain/inventory"
	"github.com/pharmadesk/pharmadesk/internal/domain/patient"
	"github.com/pharmadesk/pharmadesk/internal/domain/prescription"
	"github.com/pharmadesk/pharmadesk/internal/domain/sales"
	"github.com/pharmadesk/pharmadesk/internal/domain/scheduling"
	"github.com/pharmadesk/pharmadesk/internal/domain/settings"
	"github.com/pharmadesk/pharmadesk/internal/platform/cache"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/metrics"
	"github.com/pharmadesk/pharmadesk/internal/platform/middleware"
	"github.com/pharmadesk/pharmadesk/internal/platform/websocket"
)

const (
	version      = "0.1.0"
	maxBodySize  = "2M"
	cacheSweepAt = time.Minute
)

// appDeps are the external connections. A nil pool selects the in-memory
// repositories; a nil redis client selects the in-memory cache.
type appDeps struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

// app holds every wired service and the shared infrastructure.
type app struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	redis    *redis.Client
	registry *prometheus.Registry
	business *metrics.BusinessMetrics
	hub      *websocket.Hub
	cache    cache.Store
	memCache *cache.Memory

	patients      *patient.Service
	inventory     *inventory.Service
	sales         *sales.Service
	directory     *directory.Service
	scheduling    *scheduling.Service
	prescriptions *prescription.Service
	billing       *billing.Service
	settings      *settings.Service
	dashboard     *dashboard.Service
}

// repos groups the storage of one driver.
type repos struct {
	tx            db.Transactor
	patients      patient.Repository
	medicines     inventory.Repository
	sales         sales.Repository
	doctors       directory.DoctorRepository
	clinics       directory.ClinicRepository
	appointments  scheduling.Repository
	prescriptions prescription.Repository
	invoices      billing.InvoiceRepository
	plans         billing.PlanRepository
	payments      billing.PaymentRepository
}

func postgresRepos(pool *pgxpool.Pool) repos {
	return repos{
		tx:            db.NewTransactor(pool),
		patients:      patient.NewRepo(pool),
		medicines:     inventory.NewRepo(pool),
		sales:         sales.NewRepo(pool),
		doctors:       directory.NewDoctorRepo(pool),
		clinics:       directory.NewClinicRepo(pool),
		appointments:  scheduling.NewRepo(pool),
		prescriptions: prescription.NewRepo(pool),
		invoices:      billing.NewInvoiceRepo(pool),
		plans:         billing.NewPlanRepo(pool),
		payments:      billing.NewPaymentRepo(pool),
	}
}

func memoryRepos() repos {
	return repos{
		tx:            db.NewMemTransactor(),
		patients:      patient.NewMemRepo(),
		medicines:     inventory.NewMemRepo(),
		sales:         sales.NewMemRepo(),
		doctors:       directory.NewDoctorMemRepo(),
		clinics:       directory.NewClinicMemRepo(),
		appointments:  scheduling.NewMemRepo(),
		prescriptions: prescription.NewMemRepo(),
		invoices:      billing.NewInvoiceMemRepo(),
		plans:         billing.NewPlanMemRepo(),
		payments:      billing.NewPaymentMemRepo(),
	}
}

func newApp(cfg *config.Config, deps appDeps) *app {
	a := &app{
		cfg:      cfg,
		pool:     deps.pool,
		redis:    deps.redis,
		registry: prometheus.NewRegistry(),
		hub:      websocket.NewHub(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.business = metrics.NewBusinessMetrics(a.registry)

	if deps.redis != nil {
		a.cache = cache.NewRedis(deps.redis)
	} else {
		a.memCache = cache.NewMemory()
		a.cache = a.memCache
	}

	r := memoryRepos()
	if deps.pool != nil {
		r = postgresRepos(deps.pool)
	}

	a.patients = patient.NewService(r.patients)
	a.inventory = inventory.NewService(r.medicines, r.tx, inventory.Options{
		Events:         a.hub,
		Metrics:        a.business,
		LowStockAlerts: cfg.LowStockAlerts,
	})
	loc := cfg.Location()
	a.sales = sales.NewService(r.sales, a.inventory, r.tx, sales.Options{
		Patients: a.patients,
		Events:   a.hub,
		Metrics:  a.business,
		Currency: cfg.Currency,
		Location: loc,
	})
	a.directory = directory.NewService(r.doctors, r.clinics)
	a.scheduling = scheduling.NewService(r.appointments, a.directory, scheduling.Options{
		Patients: a.patients,
		Events:   a.hub,
		Cache:    a.cache,
		Location: loc,
	})
	a.prescriptions = prescription.NewService(r.prescriptions, a.directory, r.tx, prescription.Options{
		Patients:  a.patients,
		Medicines: a.inventory,
	})
	a.billing = billing.NewService(r.invoices, r.plans, r.payments, r.tx, billing.Options{
		Patients: a.patients,
		Sales:    a.sales,
		Gateways: billing.DefaultGateways(cfg.PaymentDelay),
		Metrics:  a.business,
		Currency: cfg.Currency,
	})
	a.settings = settings.NewService(settings.Preferences{
		Theme:    cfg.DefaultTheme,
		Language: cfg.DefaultLanguage,
	}, a.cache)
	a.dashboard = dashboard.NewService(a.patients, a.scheduling, a.inventory, a.sales)
	return a
}

// startBackground runs the memory cache sweeper until ctx ends.
func (a *app) startBackground(ctx context.Context) {
	if a.memCache != nil {
		a.memCache.StartCleanup(ctx, cacheSweepAt)
	}
}

func (a *app) healthDeps() []db.Dependency {
	if a.redis == nil {
		return nil
	}
	return []db.Dependency{{
		Name: "redis",
		Ping: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
	}}
}

func (a *app) server(logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	httpMetrics := metrics.NewHTTPMetrics(a.registry)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(a.cfg.IsProduction()))
	e.Use(httpMetrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", db.ClinicHeader},
	}))
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.pool, a.healthDeps()...))
	e.GET("/metrics", metrics.Handler(a.registry))

	ws := e.Group("", db.ClinicMiddleware(nil, a.cfg.DefaultClinic))
	websocket.NewHandler(a.hub).RegisterRoutes(ws)

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
	}))
	api.Use(db.ClinicMiddleware(a.pool, a.cfg.DefaultClinic))

	patient.NewHandler(a.patients).RegisterRoutes(api)
	inventory.NewHandler(a.inventory).RegisterRoutes(api)
	sales.NewHandler(a.sales).RegisterRoutes(api)
	directory.NewHandler(a.directory).RegisterRoutes(api)
	scheduling.NewHandler(a.scheduling).RegisterRoutes(api)
	prescription.NewHandler(a.prescriptions).RegisterRoutes(api)
	billing.NewHandler(a.billing).RegisterRoutes(api)
	settings.NewHandler(a.settings).RegisterRoutes(api)
	dashboard.NewHandler(a.dashboard).RegisterRoutes(api)

	return e
}
