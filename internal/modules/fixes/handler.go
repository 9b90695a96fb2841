package fixes

import (
	"errors"
	"time"

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
	g := rg.Group("/fixes", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/rollback", h.rollback)
}

type fixQuery struct {
	ConnectionID string `form:"connection_id"`
	ProductID    string `form:"product_id"`
	Status       string `form:"status"`
}

type fixView struct {
	models.FixModel
	Revertible bool `json:"revertible"`
}

func present(fix models.FixModel, now time.Time) fixView {
	return fixView{FixModel: fix, Revertible: fix.Revertible(now)}
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	var fq fixQuery
	if err := c.ShouldBindQuery(&fq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tx := h.db.Model(&models.FixModel{}).Order("applied_at DESC")
	if fq.ConnectionID != "" {
		tx = tx.Where("connection_id = ?", fq.ConnectionID)
	}
	if fq.ProductID != "" {
		tx = tx.Where("product_id = ?", fq.ProductID)
	}
	if fq.Status != "" {
		tx = tx.Where("status = ?", fq.Status)
	}

	var items []models.FixModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	now := time.Now()
	views := make([]fixView, 0, len(items))
	for _, fix := range items {
		views = append(views, present(fix, now))
	}
	response.Paged(c, views, pag)
}

func (h *Handler) get(c *gin.Context) {
	var fix models.FixModel
	err := h.db.First(&fix, "id = ?", c.Param("id")).Error
	if err == gorm.ErrRecordNotFound {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, present(fix, time.Now()))
}

func (h *Handler) rollback(c *gin.Context) {
	var fix models.FixModel
	err := h.db.First(&fix, "id = ?", c.Param("id")).Error
	if err == gorm.ErrRecordNotFound {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}

	var conn models.ConnectionModel
	if err := h.db.First(&conn, "id = ?", fix.ConnectionID).Error; err != nil {
		response.InternalError(c, err)
		return
	}

	actor := middleware.ActorFromContext(c)
	reverted, err := h.svc.Rollback(c.Request.Context(), &conn, fix.ID, actor)
	switch {
	case errors.Is(err, ErrRollbackExpired):
		response.UnprocessableEntity(c, "rollback deadline has passed")
		return
	case errors.Is(err, ErrAlreadyRolledBack):
		response.Conflict(c, "fix already rolled back")
		return
	case err != nil:
		response.InternalError(c, err)
		return
	}
	response.OK(c, present(*reverted, time.Now()))
}
