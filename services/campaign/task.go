package campaign

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"castcle-backend/pkg/db/option"
	"castcle-backend/pkg/money"
	"castcle-backend/pkg/taskname"
	"castcle-backend/services/account"
	"castcle-backend/services/ledger"
	"castcle-backend/services/notification"
	"castcle-backend/services/queue"
)

var Tasks = fx.Module("campaign.tasks",
	fx.Invoke(registerTasks),
)

func registerTasks(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.CampaignClaimAirdrop, s.ProcessClaimAirdrop)
}

// ProcessClaimAirdrop settles one queued claim. The task payload carries only
// the queue record ID; the record is re-fetched so a redelivered task that
// already ran observes a non-waiting status and exits without paying twice.
// Settlement runs in a single database transaction; on any error the
// transaction rolls back and the record goes to failed — the error is not
// re-thrown, failure is terminal.
func (s *Service) ProcessClaimAirdrop(ctx context.Context, t *asynq.Task) error {
	var payload queue.TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("malformed claim task payload", zap.Error(err))
		return nil
	}

	record, err := s.queues.FindByID(ctx, payload.QueueID)
	if err != nil {
		zap.L().Error("claim queue record not found", zap.String("queue_id", payload.QueueID), zap.Error(err))
		return nil
	}
	if record.Status != queue.StatusWaiting {
		zap.L().Info("skipping claim in non-waiting status",
			zap.String("queue_id", record.ID),
			zap.String("status", string(record.Status)))
		return nil
	}

	if err := s.queues.MarkStarted(ctx, record.ID); err != nil {
		if queue.IsNotWaiting(err) {
			// Lost the race: the record was cancelled or claimed elsewhere
			// between the read and the start stamp.
			zap.L().Info("claim left waiting before start", zap.String("queue_id", record.ID))
			return nil
		}
		zap.L().Error("failed to mark claim started", zap.String("queue_id", record.ID), zap.Error(err))
		return nil
	}

	status := queue.StatusFailed
	defer func() {
		if err := s.queues.Finish(ctx, record.ID, status); err != nil {
			if queue.IsNotWaiting(err) {
				// The record was cancelled mid-flight; its terminal status stands.
				zap.L().Warn("claim record already settled", zap.String("queue_id", record.ID))
				return
			}
			zap.L().Error("failed to finish claim record", zap.String("queue_id", record.ID), zap.Error(err))
		}
	}()

	claim := record.Payload.Data()
	if err := s.settleClaim(ctx, record.ID, claim); err != nil {
		zap.L().Error("claim settlement failed",
			zap.String("queue_id", record.ID),
			zap.String("campaign_id", claim.CampaignID),
			zap.Error(err))
		return nil
	}

	status = queue.StatusDone

	if s.notifier != nil {
		for _, to := range claim.To {
			s.notifier.Notify(ctx, to.AccountID, notification.KindAirdropReceived, "Your airdrop reward has arrived")
		}
	}
	return nil
}

func (s *Service) settleClaim(ctx context.Context, queueID string, claim queue.ClaimAirdropPayload) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign, err := s.campaigns.WithTrx(tx).FindOne(ctx,
			&Campaign{ID: claim.CampaignID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if campaign == nil {
			return ErrCampaignNotFound
		}

		now := time.Now()
		remaining := campaign.RewardBalance
		var total decimal.Decimal
		var entries []ledger.Entry

		for _, to := range claim.To {
			amount := s.clampAmount(campaign, to.Amount, remaining)
			if !amount.IsPositive() {
				return ErrRewardNotEnough
			}

			acc, err := s.accounts.WithTrx(tx).FindOne(ctx,
				&account.Account{ID: to.AccountID, Visibility: account.VisibilityPublish},
				option.WithLockingUpdate())
			if err != nil {
				return err
			}
			if acc == nil {
				// Account deleted between enqueue and settlement; the
				// recipient forfeits, the rest of the batch still pays.
				zap.L().Info("skipping payout to missing account",
					zap.String("queue_id", queueID),
					zap.String("account_id", to.AccountID))
				continue
			}

			if campaign.MaxClaims > 0 && int64(acc.ClaimCount(campaign.ID)) >= campaign.MaxClaims {
				return ErrReachedMaxClaims
			}

			acc.AppendClaim(campaign.ID, now)
			if err := s.accounts.WithTrx(tx).Update(ctx, acc.ID, map[string]any{
				"campaigns": acc.Campaigns,
			}); err != nil {
				return err
			}

			wallet := to.WalletType
			if wallet == "" {
				wallet = ledger.WalletPersonal
			}
			entries = append(entries, ledger.CreditAccount(to.AccountID, wallet, amount))
			remaining = remaining.Sub(amount)
			total = total.Add(amount)
		}

		if !total.IsPositive() {
			return ErrRewardNotEnough
		}

		entries = append([]ledger.Entry{ledger.DebitCAccount(ledger.CAccountNoAirdrop, total)}, entries...)
		if _, err := s.ledgers.CreateTransaction(ctx, tx, map[string]string{
			"type":       "airdrop",
			"campaignId": campaign.ID,
			"queueId":    queueID,
		}, entries); err != nil {
			return err
		}

		return s.campaigns.WithTrx(tx).Update(ctx, campaign.ID, map[string]any{
			"reward_balance": remaining,
		})
	})
}

// clampAmount bounds a payout to the per-claim reward (when the campaign has
// one), the amount requested in the payload (when it carries one), and
// whatever is left in the pool.
func (s *Service) clampAmount(campaign *Campaign, requested, remaining decimal.Decimal) decimal.Decimal {
	amount := campaign.RewardsPerClaim
	if requested.IsPositive() {
		if campaign.RewardsPerClaim.IsPositive() {
			amount = money.Min(requested, campaign.RewardsPerClaim)
		} else {
			amount = requested
		}
	}
	return money.Min(amount, remaining)
}
