package usage

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/pkg/pagination"
	"github.com/seopilot/core/internal/pkg/response"
	"gorm.io/gorm"
)

// Handler exposes usage analytics to admin.
type Handler struct {
	svc *Service
	db  *gorm.DB
}

func NewHandler(svc *Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/usage", authMW)
	g.GET("", h.list)
	g.GET("/summary", h.summary)
	g.GET("/breakdown", h.breakdown)
	g.GET("/daily", h.daily)
	g.GET("/projection", h.projection)
}

type usageQuery struct {
	ConnectionID string     `form:"connection_id"`
	From         *time.Time `form:"from" time_format:"2006-01-02"`
	To           *time.Time `form:"to"   time_format:"2006-01-02"`
	GroupBy      string     `form:"group_by"`
}

// resolveRange defaults to the last 30 days; To is exclusive.
func (q usageQuery) resolveRange(now time.Time) (time.Time, time.Time) {
	to := now
	if q.To != nil {
		to = q.To.AddDate(0, 0, 1)
	}
	from := to.AddDate(0, 0, -30)
	if q.From != nil {
		from = *q.From
	}
	return from, to
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	var uq usageQuery
	if err := c.ShouldBindQuery(&uq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tx := h.db.Model(&models.UsageRecordModel{}).Order("created_at DESC")
	if uq.ConnectionID != "" {
		tx = tx.Where("connection_id = ?", uq.ConnectionID)
	}

	var items []models.UsageRecordModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) summary(c *gin.Context) {
	var uq usageQuery
	if err := c.ShouldBindQuery(&uq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	from, to := uq.resolveRange(time.Now())
	summary, err := h.svc.Summarize(c.Request.Context(), uq.ConnectionID, from, to)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, summary)
}

func (h *Handler) breakdown(c *gin.Context) {
	var uq usageQuery
	if err := c.ShouldBindQuery(&uq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	from, to := uq.resolveRange(time.Now())
	stats, err := h.svc.GroupBy(c.Request.Context(), uq.GroupBy, uq.ConnectionID, from, to)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"data": stats})
}

func (h *Handler) daily(c *gin.Context) {
	var uq usageQuery
	if err := c.ShouldBindQuery(&uq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	from, to := uq.resolveRange(time.Now())
	series, err := h.svc.DailyTrend(c.Request.Context(), uq.ConnectionID, from, to)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"data": series})
}

func (h *Handler) projection(c *gin.Context) {
	var uq usageQuery
	if err := c.ShouldBindQuery(&uq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	projection, err := h.svc.ProjectMonth(c.Request.Context(), uq.ConnectionID, time.Now())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, projection)
}
