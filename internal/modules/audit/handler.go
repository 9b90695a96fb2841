package audit

import (
	"github.com/gin-gonic/gin"
	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/pkg/pagination"
	"github.com/seopilot/core/internal/pkg/response"
	"gorm.io/gorm"
)

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/audit", authMW)
	g.GET("", h.list)
}

type auditQuery struct {
	ConnectionID string `form:"connection_id"`
	Actor        string `form:"actor"`
	Action       string `form:"action"`
	ResourceType string `form:"resource_type"`
	ResourceID   string `form:"resource_id"`
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	var aq auditQuery
	if err := c.ShouldBindQuery(&aq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tx := h.db.Model(&models.AuditLogModel{}).Order("created_at DESC")
	if aq.ConnectionID != "" {
		tx = tx.Where("connection_id = ?", aq.ConnectionID)
	}
	if aq.Actor != "" {
		tx = tx.Where("actor = ?", aq.Actor)
	}
	if aq.Action != "" {
		tx = tx.Where("action = ?", aq.Action)
	}
	if aq.ResourceType != "" {
		tx = tx.Where("resource_type = ?", aq.ResourceType)
	}
	if aq.ResourceID != "" {
		tx = tx.Where("resource_id = ?", aq.ResourceID)
	}

	var items []models.AuditLogModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}
