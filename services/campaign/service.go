package campaign

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"castcle-backend/pkg/errutil"
	"castcle-backend/pkg/money"
	"castcle-backend/pkg/repository"
	"castcle-backend/services/account"
	"castcle-backend/services/farming"
	"castcle-backend/services/ledger"
	"castcle-backend/services/notification"
	"castcle-backend/services/queue"
)

var (
	ErrCampaignNotFound   = errutil.NotFound("CAMPAIGN_NOT_FOUND", nil)
	ErrCampaignTypeExists = errutil.Conflict("CAMPAIGN_TYPE_IS_EXIST", nil)
	ErrCampaignNotStarted = errutil.BadRequest("CAMPAIGN_HAS_NOT_STARTED", nil)
	ErrRewardNotEnough    = errutil.UnprocessableEntity("REWARD_IS_NOT_ENOUGH", nil)
	ErrReachedMaxClaims   = errutil.BadRequest("REACHED_MAX_CLAIMS", nil)
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	ledgers  *ledger.Service
	queues   *queue.Service
	notifier *notification.Service

	campaigns repository.Repository[Campaign]
	accounts  repository.Repository[account.Account]
	contents  repository.Repository[farming.Content]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Ledgers  *ledger.Service
	Queues   *queue.Service
	Notifier *notification.Service `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		ledgers:  p.Ledgers,
		queues:   p.Queues,
		notifier: p.Notifier,

		campaigns: repository.ProvideStore[Campaign](p.DB),
		accounts:  repository.ProvideStore[account.Account](p.DB),
		contents:  repository.ProvideStore[farming.Content](p.DB),
	}
}

type CreateCampaignRequest struct {
	Type            Type            `json:"type" binding:"required"`
	Name            string          `json:"name"`
	StartDate       time.Time       `json:"startDate" binding:"required"`
	EndDate         time.Time       `json:"endDate" binding:"required"`
	TotalRewards    decimal.Decimal `json:"totalRewards"`
	RewardsPerClaim decimal.Decimal `json:"rewardsPerClaim"`
	MaxClaims       int64           `json:"maxClaims"`
}

// CreateCampaign registers a campaign and funds its reward pool from the mint
// treasury. Two campaigns of the same type cannot run in overlapping windows.
func (s *Service) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*Campaign, error) {
	var overlapping int64
	err := s.db.WithContext(ctx).Model(&Campaign{}).
		Where("type = ? AND start_date <= ? AND end_date >= ?", req.Type, req.EndDate, req.StartDate).
		Count(&overlapping).Error
	if err != nil {
		return nil, err
	}
	if overlapping > 0 {
		return nil, ErrCampaignTypeExists
	}

	status := StatusScheduled
	if req.Type == TypeContentReach {
		status = StatusCalculating
	}

	campaign := &Campaign{
		ID:              s.node.Generate().String(),
		Type:            req.Type,
		Status:          status,
		Name:            req.Name,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		TotalRewards:    money.Round(req.TotalRewards),
		RewardBalance:   money.Round(req.TotalRewards),
		RewardsPerClaim: money.Round(req.RewardsPerClaim),
		MaxClaims:       req.MaxClaims,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.campaigns.WithTrx(tx).Create(ctx, campaign); err != nil {
			return err
		}
		if campaign.TotalRewards.IsPositive() {
			_, err := s.ledgers.CreateTransaction(ctx, tx,
				map[string]string{"type": "campaign-funding", "campaignId": campaign.ID},
				[]ledger.Entry{
					ledger.DebitCAccount(ledger.CAccountNoMint, campaign.TotalRewards),
					ledger.CreditCAccount(ledger.CAccountNoAirdrop, campaign.TotalRewards),
				})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

type UpdateCampaignRequest struct {
	Name            *string          `json:"name"`
	StartDate       *time.Time       `json:"startDate"`
	EndDate         *time.Time       `json:"endDate"`
	RewardsPerClaim *decimal.Decimal `json:"rewardsPerClaim"`
	MaxClaims       *int64           `json:"maxClaims"`
}

func (s *Service) UpdateCampaign(ctx context.Context, campaignID string, req UpdateCampaignRequest) (*Campaign, error) {
	campaign, err := s.campaigns.FindOne(ctx, &Campaign{ID: campaignID})
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
	}
	if req.RewardsPerClaim != nil {
		updates["rewards_per_claim"] = money.Round(*req.RewardsPerClaim)
	}
	if req.MaxClaims != nil {
		updates["max_claims"] = *req.MaxClaims
	}
	if len(updates) > 0 {
		if err := s.campaigns.Update(ctx, campaignID, updates); err != nil {
			return nil, err
		}
	}

	return s.campaigns.FindOne(ctx, &Campaign{ID: campaignID})
}

func (s *Service) ListCampaigns(ctx context.Context) ([]*Campaign, error) {
	return s.campaigns.Find(ctx, &Campaign{})
}

// ClaimCampaignsAirdrop gates the claim and hands it to the queue. The gates
// run in a fixed order: window, pool, claim count. Passing them here is not
// final — the consumer re-validates under row locks before paying.
func (s *Service) ClaimCampaignsAirdrop(ctx context.Context, accountID string, campaignType Type) (*queue.Queue, error) {
	campaign, err := s.activeCampaign(ctx, campaignType, time.Now())
	if err != nil {
		return nil, err
	}

	if campaign.RewardBalance.LessThan(campaign.RewardsPerClaim) {
		return nil, ErrRewardNotEnough
	}

	claims, err := s.queues.CountClaims(ctx, campaign.ID, accountID)
	if err != nil {
		return nil, err
	}
	if campaign.MaxClaims > 0 && claims >= campaign.MaxClaims {
		return nil, ErrReachedMaxClaims
	}

	acc, err := s.accounts.FindOne(ctx, &account.Account{ID: accountID, Visibility: account.VisibilityPublish})
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, account.ErrAccountNotFound
	}

	return s.queues.EnqueueClaimAirdrop(ctx, queue.NewClaimAirdropPayload(campaign.ID, []queue.Recipient{
		{AccountID: accountID, WalletType: ledger.WalletPersonal},
	}))
}

// ClaimVerifyMobileAirdrop satisfies the account service's claim hook.
func (s *Service) ClaimVerifyMobileAirdrop(ctx context.Context, accountID string) error {
	_, err := s.ClaimCampaignsAirdrop(ctx, accountID, TypeVerifyMobile)
	return err
}

func (s *Service) activeCampaign(ctx context.Context, campaignType Type, now time.Time) (*Campaign, error) {
	var campaigns []*Campaign
	err := s.db.WithContext(ctx).
		Where("type = ? AND status <> ? AND start_date <= ? AND end_date >= ?",
			campaignType, StatusComplete, now, now).
		Limit(1).
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, ErrCampaignNotStarted
	}
	return campaigns[0], nil
}

// ClaimContentReachAirdrops drains every content-reach campaign whose window
// has closed, one per iteration. Each campaign's remaining pool is split
// across content authors proportionally to reach, queued as a single
// aggregate payout, and the campaign is marked complete so the loop
// terminates.
func (s *Service) ClaimContentReachAirdrops(ctx context.Context) error {
	for {
		var campaigns []*Campaign
		err := s.db.WithContext(ctx).
			Where("type = ? AND status = ? AND end_date <= ?",
				TypeContentReach, StatusCalculating, time.Now()).
			Limit(1).
			Find(&campaigns).Error
		if err != nil {
			return err
		}
		if len(campaigns) == 0 {
			return nil
		}
		campaign := campaigns[0]

		recipients, err := s.contentReachRecipients(ctx, campaign)
		if err != nil {
			return err
		}

		if len(recipients) > 0 {
			if _, err := s.queues.EnqueueClaimAirdrop(ctx, queue.NewClaimAirdropPayload(campaign.ID, recipients)); err != nil {
				return err
			}
		} else {
			zap.L().Info("content reach campaign closed with no eligible authors",
				zap.String("campaign_id", campaign.ID))
		}

		if err := s.campaigns.Update(ctx, campaign.ID, map[string]any{"status": StatusComplete}); err != nil {
			return err
		}
	}
}

// contentReachRecipients splits the campaign pool across authors weighted by
// the reach of their published content. The last share absorbs the rounding
// remainder so the shares sum exactly to the pool.
func (s *Service) contentReachRecipients(ctx context.Context, campaign *Campaign) ([]queue.Recipient, error) {
	contents, err := s.contents.Find(ctx, &farming.Content{Visibility: farming.VisibilityPublish})
	if err != nil {
		return nil, err
	}

	reachByAuthor := map[string]int64{}
	var authors []string
	var totalReach int64
	for _, content := range contents {
		if content.Reach <= 0 {
			continue
		}
		if _, seen := reachByAuthor[content.AuthorAccountID]; !seen {
			authors = append(authors, content.AuthorAccountID)
		}
		reachByAuthor[content.AuthorAccountID] += content.Reach
		totalReach += content.Reach
	}
	if totalReach == 0 || !campaign.RewardBalance.IsPositive() {
		return nil, nil
	}

	pool := campaign.RewardBalance
	total := decimal.NewFromInt(totalReach)
	remaining := pool

	recipients := make([]queue.Recipient, 0, len(authors))
	for i, author := range authors {
		share := money.Round(pool.Mul(decimal.NewFromInt(reachByAuthor[author])).Div(total))
		if i == len(authors)-1 {
			share = remaining
		}
		if !share.IsPositive() {
			continue
		}
		remaining = remaining.Sub(share)
		recipients = append(recipients, queue.Recipient{
			AccountID:  author,
			WalletType: ledger.WalletPersonal,
			Amount:     share,
		})
	}
	return recipients, nil
}
