package plans

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/seopilot/core/internal/middleware"
	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/pkg/pagination"
	"github.com/seopilot/core/internal/pkg/response"
	"gorm.io/gorm"
)

type Handler struct {
	svc *Service
	db  *gorm.DB
}

func NewHandler(svc *Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/plans", authMW)
	g.GET("", h.list)
	g.GET("/pending", h.pending)
	g.POST("/:id/approve", h.approve)
	g.POST("/:id/reject", h.reject)
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	tx := h.db.Model(&models.PendingPlanModel{}).Order("created_at DESC")
	if connID := c.Query("connection_id"); connID != "" {
		tx = tx.Where("connection_id = ?", connID)
	}
	if status := c.Query("status"); status != "" {
		tx = tx.Where("status = ?", status)
	}

	var items []models.PendingPlanModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) pending(c *gin.Context) {
	connID := c.Query("connection_id")
	if connID == "" {
		response.BadRequest(c, "connection_id is required")
		return
	}

	plan, linked, err := h.svc.GetPending(c.Request.Context(), connID)
	if errors.Is(err, ErrNoPendingPlan) {
		response.NotFoundMsg(c, "no pending plan for connection")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"plan": plan, "issues": linked})
}

// loadPendingPlan resolves the route plan ID to a still-pending plan and
// its connection.
func (h *Handler) loadPendingPlan(c *gin.Context) (*models.PendingPlanModel, *models.ConnectionModel, bool) {
	var plan models.PendingPlanModel
	err := h.db.First(&plan, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.NotFound(c)
		return nil, nil, false
	}
	if err != nil {
		response.InternalError(c, err)
		return nil, nil, false
	}
	if plan.Status != models.PlanPending {
		response.Conflict(c, "plan already reviewed")
		return nil, nil, false
	}

	var conn models.ConnectionModel
	if err := h.db.First(&conn, "id = ?", plan.ConnectionID).Error; err != nil {
		response.InternalError(c, err)
		return nil, nil, false
	}
	return &plan, &conn, true
}

func (h *Handler) approve(c *gin.Context) {
	_, conn, ok := h.loadPendingPlan(c)
	if !ok {
		return
	}

	report, err := h.svc.Approve(c.Request.Context(), conn, middleware.ActorFromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, report)
}

func (h *Handler) reject(c *gin.Context) {
	_, conn, ok := h.loadPendingPlan(c)
	if !ok {
		return
	}

	plan, err := h.svc.Reject(c.Request.Context(), conn, middleware.ActorFromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, plan)
}
