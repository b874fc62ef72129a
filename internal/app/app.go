package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ollamamq/ollamamq/internal/backend"
	"github.com/ollamamq/ollamamq/internal/config"
	"github.com/ollamamq/ollamamq/internal/dashboard"
	"github.com/ollamamq/ollamamq/internal/handler/http/dispatch"
	"github.com/ollamamq/ollamamq/internal/handler/http/health"
	httpiface "github.com/ollamamq/ollamamq/internal/handler/http/interface"
	statshttp "github.com/ollamamq/ollamamq/internal/handler/http/stats"
	"github.com/ollamamq/ollamamq/internal/registry"
	"github.com/ollamamq/ollamamq/internal/scheduler"
	"github.com/ollamamq/ollamamq/internal/stats"
)

// App represents the dispatcher application with its lifecycle management.
type App struct {
	config       *config.Config
	log          *zap.Logger
	echo         *echo.Echo
	readiness    *atomic.Bool
	shuttingDown *atomic.Bool
	httpHandlers []httpiface.HttpRouter

	reg     *registry.Registry
	global  *stats.Global
	backend *backend.Client
	sched   *scheduler.Scheduler

	cancel context.CancelFunc
}

// NewApp creates a new App instance with the given configuration.
// Follows constructor injection pattern - all dependencies passed via parameters.
func NewApp(cfg *config.Config, log *zap.Logger) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &App{
		config:       cfg,
		log:          log,
		echo:         e,
		readiness:    atomic.NewBool(false),
		shuttingDown: atomic.NewBool(false),
	}
}

// injectDependency initializes the registry, backend client, scheduler,
// and HTTP handlers. Centralizes wiring so adding a handler is one line.
func (a *App) injectDependency() {
	a.reg = registry.New()
	a.global = stats.NewGlobal()
	a.backend = backend.New(a.config.BackendBaseURL, a.config.CallTimeout())

	a.sched = scheduler.New(a.reg, a.backend, scheduler.Config{
		CallTimeout:   a.config.CallTimeout(),
		IdleThreshold: a.config.IdleThreshold(),
		GCInterval:    time.Second,
	}, a.log, a.global)

	a.httpHandlers = []httpiface.HttpRouter{
		health.NewHealthHandler(a.readiness),
		dispatch.NewHandler(a.reg, a.global, a.log, a.config.BridgeBufferSize, a.shuttingDown),
		statshttp.NewHandler(a.reg, a.global, a.sched),
	}
}

// preProcess is called before server starts. Starts the scheduler's run
// loop before accepting HTTP traffic.
func (a *App) preProcess() {
	a.log.Info("preparing to start server")
	go a.sched.Run()
}

// postProcess is called after shutdown signal is received.
func (a *App) postProcess() {
	a.log.Info("shutting down gracefully")
}

// Run starts the Echo server and handles graceful shutdown. Implements the
// full lifecycle: startup -> run -> graceful shutdown.
func (a *App) Run() error {
	_, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.injectDependency()
	a.preProcess()

	var bg errgroup.Group

	if !a.config.DisableDashboard {
		bg.Go(func() error {
			if err := dashboard.Run(a.reg, a.global, a.sched); err != nil {
				a.log.Warn("dashboard exited", zap.Error(err))
			}
			return nil
		})
	}

	bg.Go(func() error {
		e := a.echo
		addr := fmt.Sprintf(":%d", a.config.ListenPort)

		// 1. CORS first so preflight is handled before any validation.
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     a.config.AllowedOrigins,
			AllowMethods:     []string{http.MethodPost, http.MethodGet, http.MethodOptions},
			AllowHeaders:     []string{"Content-Type", "X-User-ID", "Authorization", "Accept", "Origin", "User-Agent"},
			AllowCredentials: true,
		}))

		// 2. Body size limit.
		limit := fmt.Sprintf("%dM", a.config.MaxRequestSizeMB)
		e.Use(middleware.BodyLimit(limit))

		// 3. Panic recovery.
		e.Use(middleware.Recover())

		// 4. Readiness gate: reject new requests once draining, except
		// health/metrics endpoints which must stay observable.
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if !a.readiness.Load() {
					p := c.Request().URL.Path
					if p != "/healthz" && p != "/readyz" && p != "/health" && p != "/metrics" {
						a.log.Info("readiness=false: reject new request", zap.String("path", p))
						return c.NoContent(http.StatusServiceUnavailable)
					}
				}
				return next(c)
			}
		})

		// 5. Prometheus metrics middleware and endpoint.
		e.Use(echoprometheus.NewMiddleware("ollamamq"))
		e.GET("/metrics", echoprometheus.NewHandler())

		// 6. Route registration.
		for _, handler := range a.httpHandlers {
			handler.SetupRoutes(e)
		}

		a.log.Info("starting ollamamq server", zap.String("addr", addr))
		a.readiness.Store(true)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.log.Error("server error", zap.Error(err))
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	a.log.Info("server ready, waiting for interrupt signal")
	<-quit

	a.postProcess()

	// Step 1: mark not ready so load balancers stop routing traffic, and
	// reject new enqueues immediately.
	a.readiness.Store(false)
	a.shuttingDown.Store(true)
	drainDuration := time.Duration(a.config.ShutdownDrainSeconds) * time.Second
	a.log.Info("readiness=false: start drain window", zap.Duration("duration", drainDuration))

	// Step 2: drain window so in-flight load balancer checks catch up.
	time.Sleep(drainDuration)

	// Step 3: stop the scheduler, draining remaining queued jobs with
	// Cancelled terminals and cancelling any in-flight call.
	shutdownTimeout := time.Duration(a.config.ShutdownTimeoutSeconds) * time.Second
	schedCtx, schedCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer schedCancel()
	a.log.Info("stopping scheduler")
	if err := a.sched.Shutdown(schedCtx); err != nil {
		a.log.Error("scheduler shutdown error", zap.Error(err))
	}

	// Step 4: shutdown the Echo server with the same timeout budget.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	a.log.Info("shutting down echo server")
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		a.log.Error("shutdown error", zap.Error(err))
		a.cancel()
		return err
	}

	a.cancel()
	_ = bg.Wait()
	a.log.Info("server stopped gracefully")
	return nil
}
