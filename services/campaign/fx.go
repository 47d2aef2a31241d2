package campaign

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"castcle-backend/services/account"
)

var Module = fx.Module("campaign.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(bindAirdropClaimer),
)

// bindAirdropClaimer runs after both services exist; a provider edge here
// would cycle through ledger.AccountFinder.
func bindAirdropClaimer(accounts *account.Service, s *Service) {
	accounts.SetClaimer(s)
}

var Routes = fx.Module("campaign.routes",
	fx.Invoke(registerRoutes),
)

// SchedulerModule runs the content-reach sweep; only the worker mounts it.
var SchedulerModule = fx.Module("campaign.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)

func registerRoutes(r *gin.Engine, h *Handler) {
	v2 := r.Group("/v2")
	v2.POST("/campaigns", h.CreateCampaign)
	v2.GET("/campaigns", h.ListCampaigns)
	v2.PUT("/campaigns/:campaignID", h.UpdateCampaign)
	v2.POST("/wallets/:accountID/claims", h.Claim)
}
