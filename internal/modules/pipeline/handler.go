package pipeline

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/pkg/response"
	"github.com/seopilot/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskTypeRun is the taskqueue type for remediation runs.
const TaskTypeRun = "pipeline.run"

// Handler exposes manual run triggers and run status.
type Handler struct {
	runner *Runner
	tasks  *taskqueue.Service
	db     *gorm.DB
	logger *zap.Logger
}

func NewHandler(runner *Runner, tasks *taskqueue.Service, db *gorm.DB, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, tasks: tasks, db: db, logger: logger.Named("PipelineAPI")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/pipeline", authMW)
	g.POST("/run", h.trigger)
	g.GET("/runs", h.listRuns)
	g.GET("/runs/:id", h.getRun)
}

type triggerBody struct {
	ConnectionID string `json:"connection_id" binding:"required"`
}

// trigger starts a run in the background and returns the tracking task.
func (h *Handler) trigger(c *gin.Context) {
	var body triggerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var conn models.ConnectionModel
	err := h.db.First(&conn, "id = ?", body.ConnectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.NotFoundMsg(c, "connection not found")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !conn.Active {
		response.UnprocessableEntity(c, "connection is not active")
		return
	}

	ctx := c.Request.Context()
	task, err := h.tasks.Enqueue(ctx, TaskTypeRun, gin.H{"connection_id": conn.ID}, TaskTypeRun+":"+conn.ID, conn.ID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if task.Status == taskqueue.TaskPending {
		go h.execute(task.ID, conn)
	}
	// A non-pending task is a dedup hit: the previous trigger still owns it.
	response.Accepted(c, task)
}

func (h *Handler) execute(taskID string, conn models.ConnectionModel) {
	ctx := context.Background()
	_ = h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, nil, "")

	report, err := h.runner.RunConnection(ctx, &conn)
	if errors.Is(err, ErrRunInProgress) {
		// Another executor owns this connection. Cancel the task so its
		// dedup slot frees up and a later trigger can queue a fresh run.
		_ = h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskCancelled, nil, err.Error())
		return
	}
	if err != nil {
		h.logger.Warn("triggered run failed",
			zap.String("connection_id", conn.ID),
			zap.Error(err),
		)
		_ = h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, err.Error())
		return
	}
	_ = h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, report, "")
}

func (h *Handler) listRuns(c *gin.Context) {
	page, size := 1, 20
	taskType := TaskTypeRun
	var groupKey *string
	if connID := c.Query("connection_id"); connID != "" {
		groupKey = &connID
	}

	tasks, total, err := h.tasks.List(c.Request.Context(), page, size, &taskType, groupKey)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"data": tasks, "total": total})
}

func (h *Handler) getRun(c *gin.Context) {
	task, err := h.tasks.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.NotFound(c)
		return
	}
	response.OK(c, task)
}
