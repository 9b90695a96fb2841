// Package connections manages tenant storefront connections, including the
// per-tenant execution mode that decides how fixes are dispatched.
package connections

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/seopilot/core/internal/models"
	"github.com/seopilot/core/internal/pkg/pagination"
	"github.com/seopilot/core/internal/pkg/response"
	"gorm.io/gorm"
)

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/connections", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.PATCH("/:id", h.update)
	g.PATCH("/:id/mode", h.setMode)
	g.DELETE("/:id", h.deactivate)
}

type createBody struct {
	Name        string `json:"name" binding:"required"`
	Platform    string `json:"platform"`
	ShopDomain  string `json:"shop_domain" binding:"required"`
	AccessToken string `json:"access_token" binding:"required"`
	Endpoint    string `json:"endpoint"`
	Mode        string `json:"mode"`
}

type updateBody struct {
	Name        *string `json:"name"`
	AccessToken *string `json:"access_token"`
	Endpoint    *string `json:"endpoint"`
	Active      *bool   `json:"active"`
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	tx := h.db.Model(&models.ConnectionModel{}).Order("created_at DESC")
	if active := c.Query("active"); active != "" {
		tx = tx.Where("active = ?", active == "true")
	}

	var items []models.ConnectionModel
	pag, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, conn)
}

func (h *Handler) create(c *gin.Context) {
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	mode := models.ExecutionMode(strings.ToUpper(strings.TrimSpace(body.Mode)))
	if body.Mode == "" {
		mode = models.ModeApprove
	}
	if !models.ValidMode(mode) {
		response.BadRequest(c, "mode must be AUTOMATIC, PLAN or APPROVE")
		return
	}

	platform := strings.TrimSpace(body.Platform)
	if platform == "" {
		platform = "shopify"
	}

	conn := models.ConnectionModel{
		Name:        body.Name,
		Platform:    platform,
		ShopDomain:  strings.TrimSpace(body.ShopDomain),
		AccessToken: body.AccessToken,
		Endpoint:    strings.TrimSpace(body.Endpoint),
		Mode:        mode,
		Active:      true,
	}
	if err := h.db.Create(&conn).Error; err != nil {
		response.Conflict(c, "shop domain already connected")
		return
	}
	response.Created(c, conn)
}

func (h *Handler) update(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}

	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if body.Name != nil {
		updates["name"] = *body.Name
	}
	if body.AccessToken != nil {
		updates["access_token"] = *body.AccessToken
	}
	if body.Endpoint != nil {
		updates["endpoint"] = *body.Endpoint
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if len(updates) == 0 {
		response.OK(c, conn)
		return
	}

	if err := h.db.Model(&conn).Updates(updates).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, conn)
}

type modeBody struct {
	Mode string `json:"mode" binding:"required"`
}

// setMode flips the connection's execution policy. Takes effect on the
// next run; in-flight runs keep the mode they started with.
func (h *Handler) setMode(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}

	var body modeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	mode := models.ExecutionMode(strings.ToUpper(strings.TrimSpace(body.Mode)))
	if !models.ValidMode(mode) {
		response.BadRequest(c, "mode must be AUTOMATIC, PLAN or APPROVE")
		return
	}

	if err := h.db.Model(&conn).Update("mode", mode).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	conn.Mode = mode
	response.OK(c, conn)
}

func (h *Handler) deactivate(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.db.Model(&conn).Update("active", false).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) load(c *gin.Context) (models.ConnectionModel, bool) {
	var conn models.ConnectionModel
	err := h.db.First(&conn, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.NotFound(c)
		return conn, false
	}
	if err != nil {
		response.InternalError(c, err)
		return conn, false
	}
	return conn, true
}
