package account

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

func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("INVALID_REQUEST", err))
		return
	}

	acc, err := h.service.CreateAccount(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, acc)
}

func (h *Handler) GetAccount(c *gin.Context) {
	acc, err := h.service.GetAccount(c.Request.Context(), c.Param("accountID"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, acc)
}

func (h *Handler) VerifyMobile(c *gin.Context) {
	acc, err := h.service.VerifyMobile(c.Request.Context(), c.Param("accountID"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, acc)
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.service.DeleteAccount(c.Request.Context(), c.Param("accountID")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
