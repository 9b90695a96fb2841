package issues

import (
	"github.com/gin-gonic/gin"
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
	g := rg.Group("/issues", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

type issueQuery struct {
	ConnectionID string `form:"connection_id"`
	ProductID    string `form:"product_id"`
	Status       string `form:"status"`
	Severity     string `form:"severity"`
	Type         string `form:"type"`
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	var iq issueQuery
	if err := c.ShouldBindQuery(&iq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tx := h.db.Model(&models.IssueModel{}).Order("detected_at DESC")
	if iq.ConnectionID != "" {
		tx = tx.Where("connection_id = ?", iq.ConnectionID)
	}
	if iq.ProductID != "" {
		tx = tx.Where("product_id = ?", iq.ProductID)
	}
	if iq.Status != "" {
		tx = tx.Where("status = ?", iq.Status)
	}
	if iq.Severity != "" {
		tx = tx.Where("severity = ?", iq.Severity)
	}
	if iq.Type != "" {
		tx = tx.Where("type = ?", iq.Type)
	}

	var items []models.IssueModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	var issue models.IssueModel
	err := h.db.First(&issue, "id = ?", c.Param("id")).Error
	if err == gorm.ErrRecordNotFound {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, issue)
}
