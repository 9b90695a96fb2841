// Package app assembles the HTTP server: config, database, Redis, services
// and routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/seopilot/core/internal/config"
	"github.com/seopilot/core/internal/database"
	"github.com/seopilot/core/internal/middleware"
	"github.com/seopilot/core/internal/modules/audit"
	"github.com/seopilot/core/internal/modules/fixes"
	"github.com/seopilot/core/internal/modules/issues"
	"github.com/seopilot/core/internal/modules/oracle"
	"github.com/seopilot/core/internal/modules/pipeline"
	"github.com/seopilot/core/internal/modules/plans"
	"github.com/seopilot/core/internal/modules/storefront"
	"github.com/seopilot/core/internal/modules/usage"
	pkgcron "github.com/seopilot/core/internal/pkg/cron"
	"github.com/seopilot/core/internal/pkg/jwt"
	pkgredis "github.com/seopilot/core/internal/pkg/redis"
	"github.com/seopilot/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler

	runner *pipeline.Runner
	tasks  *taskqueue.Service
}

// services groups the request-facing domain services built during New.
type services struct {
	meter   *usage.Service
	issues  *issues.Service
	applier *fixes.Service
	plans   *plans.Service
}

// New initializes the application: config → DB → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cfg.JWTSecret != "" {
		jwt.SetSecret(cfg.JWTSecret)
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(buildCORSConfig(cfg)))

	// Services, bottom up: meter, oracle, stores, applier, aggregator,
	// runner.
	client := storefront.NewHTTPClient(logger)
	meter := usage.NewService(db, logger)
	assessor := oracle.NewService(cfg.AI, meter, logger)
	auditSvc := audit.NewService(db, logger)
	issueSvc := issues.NewService(db, logger)
	applier := fixes.NewService(db, client, auditSvc, logger)
	planSvc := plans.NewService(db, applier, client, auditSvc, logger)
	runner := pipeline.NewRunner(cfg.Pipeline, db, client, assessor, issueSvc, applier, planSvc, auditSvc, rc, logger)
	tasks := taskqueue.NewService(rc)
	svcs := &services{meter: meter, issues: issueSvc, applier: applier, plans: planSvc}

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New(logger)
	registerCronJobs(sched, cfg, runner, tasks, logger)
	go sched.Start(ctx)

	app := &App{
		cfg:    cfg,
		router: router,
		db:     db,
		rc:     rc,
		logger: logger,
		cancel: cancel,
		sched:  sched,
		runner: runner,
		tasks:  tasks,
	}
	app.registerRoutes(svcs)

	if cfg.IsDev() {
		if token, err := jwt.Sign("admin", 24*time.Hour); err == nil {
			logger.Info("dev API token", zap.String("token", token))
		}
	}
	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines.
func (a *App) Shutdown() { a.cancel() }

func buildCORSConfig(cfg *config.AppConfig) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotence"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	return corsConfig
}
