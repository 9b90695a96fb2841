package app

import (
	"github.com/gin-gonic/gin"
	"github.com/seopilot/core/internal/middleware"
	"github.com/seopilot/core/internal/modules/audit"
	"github.com/seopilot/core/internal/modules/connections"
	"github.com/seopilot/core/internal/modules/fixes"
	"github.com/seopilot/core/internal/modules/health"
	"github.com/seopilot/core/internal/modules/issues"
	"github.com/seopilot/core/internal/modules/pipeline"
	"github.com/seopilot/core/internal/modules/plans"
	"github.com/seopilot/core/internal/modules/usage"
	"github.com/seopilot/core/internal/pkg/response"
)

func (a *App) registerRoutes(svcs *services) {
	r := a.router
	db := a.db
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group("/api/v2")
	api.Use(middleware.RateLimit(a.rc.Raw()))
	api.Use(middleware.Idempotence(a.rc.Raw()))

	health.NewHandler(db, a.rc, a.sched).RegisterRoutes(api, authMW)
	connections.NewHandler(db).RegisterRoutes(api, authMW)
	issues.NewHandler(svcs.issues, db).RegisterRoutes(api, authMW)
	fixes.NewHandler(svcs.applier, db).RegisterRoutes(api, authMW)
	plans.NewHandler(svcs.plans, db).RegisterRoutes(api, authMW)
	usage.NewHandler(svcs.meter, db).RegisterRoutes(api, authMW)
	audit.NewHandler(db).RegisterRoutes(api, authMW)
	pipeline.NewHandler(a.runner, a.tasks, db, a.logger).RegisterRoutes(api, authMW)
}
