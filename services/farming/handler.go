package farming

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"castcle-backend/pkg/errutil"
)

type Handler struct {
	service *Service
}

type HandlerParams struct {
	fx.In
	Service *Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{service: p.Service}
}

func (h *Handler) CreateContent(c *gin.Context) {
	var req CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("INVALID_REQUEST", err))
		return
	}

	content, err := h.service.CreateContent(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, content)
}

type farmRequest struct {
	AccountID string `json:"accountId" binding:"required"`
}

func (h *Handler) Farm(c *gin.Context) {
	var req farmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("INVALID_REQUEST", err))
		return
	}

	position, err := h.service.Farm(c.Request.Context(), c.Param("contentID"), req.AccountID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, position)
}

func (h *Handler) Unfarm(c *gin.Context) {
	position, err := h.service.Unfarm(c.Request.Context(), c.Param("contentID"), c.Param("accountID"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, position)
}

func (h *Handler) GetContentFarming(c *gin.Context) {
	position, err := h.service.GetContentFarming(c.Request.Context(), c.Param("contentID"), c.Param("accountID"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, position)
}
