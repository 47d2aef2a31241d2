package ledger

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
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

func (h *Handler) GetBalance(c *gin.Context) {
	accountID := c.Param("accountID")
	walletType := WalletType(c.Query("walletType"))

	balance, err := h.service.GetBalance(c.Request.Context(), accountID, walletType)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accountId":  accountID,
		"walletType": walletType,
		"balance":    balance,
	})
}

func (h *Handler) GetCAccountBalance(c *gin.Context) {
	no := c.Param("no")

	balance, err := h.service.GetCAccountBalance(c.Request.Context(), no)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"no":      no,
		"balance": balance,
	})
}
