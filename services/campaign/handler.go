package campaign

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

func (h *Handler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("INVALID_REQUEST", err))
		return
	}

	campaign, err := h.service.CreateCampaign(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, campaign)
}

func (h *Handler) UpdateCampaign(c *gin.Context) {
	var req UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("INVALID_REQUEST", err))
		return
	}

	campaign, err := h.service.UpdateCampaign(c.Request.Context(), c.Param("campaignID"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

func (h *Handler) ListCampaigns(c *gin.Context) {
	campaigns, err := h.service.ListCampaigns(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

type claimRequest struct {
	Type Type `json:"type" binding:"required"`
}

// Claim accepts the airdrop claim and returns 202; settlement happens in the
// worker.
func (h *Handler) Claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("INVALID_REQUEST", err))
		return
	}

	record, err := h.service.ClaimCampaignsAirdrop(c.Request.Context(), c.Param("accountID"), req.Type)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"queueId": record.ID,
		"status":  record.Status,
	})
}
