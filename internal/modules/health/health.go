// Package health reports process liveness and dependency reachability.
package health

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seopilot/core/internal/pkg/cron"
	redisc "github.com/seopilot/core/internal/pkg/redis"
	"github.com/seopilot/core/internal/pkg/response"
	"gorm.io/gorm"
)

var startedAt = time.Now()

type Handler struct {
	db        *gorm.DB
	rdb       *redisc.Client
	scheduler *cron.Scheduler
}

func NewHandler(db *gorm.DB, rdb *redisc.Client, scheduler *cron.Scheduler) *Handler {
	return &Handler{db: db, rdb: rdb, scheduler: scheduler}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/health", h.health)
	rg.GET("/health/cron", authMW, h.cronJobs)
}

func (h *Handler) health(c *gin.Context) {
	dbOK := true
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbOK = false
	}

	redisOK := h.rdb != nil
	if redisOK {
		if err := h.rdb.Raw().Ping(c.Request.Context()).Err(); err != nil {
			redisOK = false
		}
	}

	response.OK(c, gin.H{
		"uptime": time.Since(startedAt).Round(time.Second).String(),
		"db":     dbOK,
		"redis":  redisOK,
	})
}

func (h *Handler) cronJobs(c *gin.Context) {
	response.OK(c, gin.H{"jobs": h.scheduler.List()})
}
