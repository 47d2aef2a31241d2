package farming

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"castcle-backend/pkg/config"
	"castcle-backend/pkg/errutil"
	"castcle-backend/pkg/money"
	"castcle-backend/pkg/repository"
	"castcle-backend/services/ledger"
)

var (
	ErrContentNotFound        = errutil.NotFound("CONTENT_NOT_FOUND", nil)
	ErrContentFarmingNotFound = errutil.NotFound("CONTENT_FARMING_NOT_FOUND", nil)
	ErrNotEnoughBalance       = errutil.UnprocessableEntity("NOT_ENOUGH_BALANCE", nil)
	ErrContentFarmingLimit    = errutil.UnprocessableEntity("CONTENT_FARMING_LIMIT", nil)
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	ledgers *ledger.Service

	rate       decimal.Decimal
	duration   time.Duration
	maxFarmers int

	contents repository.Repository[Content]
	farmings repository.Repository[ContentFarming]
}

type ServiceParams struct {
	fx.In

	Config  *config.Config
	DB      *gorm.DB
	Node    *snowflake.Node
	Ledgers *ledger.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		ledgers:    p.Ledgers,
		rate:       money.FromFloat(p.Config.Wallet.FarmingRate),
		duration:   p.Config.Wallet.FarmingDuration,
		maxFarmers: p.Config.Wallet.MaxFarmersPerContent,

		contents: repository.ProvideStore[Content](p.DB),
		farmings: repository.ProvideStore[ContentFarming](p.DB),
	}
}

type CreateContentRequest struct {
	AuthorAccountID string `json:"authorAccountId" binding:"required"`
	Reach           int64  `json:"reach"`
}

func (s *Service) CreateContent(ctx context.Context, req CreateContentRequest) (*Content, error) {
	content := &Content{
		ID:              s.node.Generate().String(),
		AuthorAccountID: req.AuthorAccountID,
		Reach:           req.Reach,
		Visibility:      VisibilityPublish,
	}
	if err := s.contents.Create(ctx, content); err != nil {
		return nil, err
	}
	return content, nil
}

// Farm opens or refreshes a farming position. The call is idempotent: an
// already-farming position is returned as-is, a settled one is re-staked as a
// fresh episode.
func (s *Service) Farm(ctx context.Context, contentID, accountID string) (*ContentFarming, error) {
	content, err := s.contents.FindOne(ctx, &Content{ID: contentID, Visibility: VisibilityPublish})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, ErrContentNotFound
	}

	existing, err := s.farmings.FindOne(ctx, &ContentFarming{ContentID: contentID, AccountID: accountID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == StatusFarming {
			return existing, nil
		}
		return s.UpdateContentFarming(ctx, existing)
	}

	return s.CreateContentFarming(ctx, contentID, accountID)
}

// CreateContentFarming opens a new position. The stake is a fixed fraction of
// the account's total holdings (spendable plus already farmed), capped by
// what is actually spendable, so successive farms from a fixed holding stake
// the same amount until the spendable wallet runs dry.
func (s *Service) CreateContentFarming(ctx context.Context, contentID, accountID string) (*ContentFarming, error) {
	position := &ContentFarming{
		ID:        s.node.Generate().String(),
		ContentID: contentID,
		AccountID: accountID,
		Status:    StatusFarming,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkCapacity(ctx, tx, contentID); err != nil {
			return err
		}

		stake, err := s.stakeAmount(ctx, tx, accountID)
		if err != nil {
			return err
		}

		position.FarmAmount = stake
		position.StartedAt = time.Now()

		if err := s.lockStake(ctx, tx, position); err != nil {
			return err
		}
		return s.farmings.WithTrx(tx).Create(ctx, position)
	})
	if err != nil {
		return nil, err
	}
	return position, nil
}

// UpdateContentFarming re-stakes a settled position as a fresh episode on the
// same row.
func (s *Service) UpdateContentFarming(ctx context.Context, position *ContentFarming) (*ContentFarming, error) {
	if position == nil || !position.Status.Settled() {
		return nil, ErrContentFarmingNotFound
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkCapacity(ctx, tx, position.ContentID); err != nil {
			return err
		}

		stake, err := s.stakeAmount(ctx, tx, position.AccountID)
		if err != nil {
			return err
		}

		position.Status = StatusFarming
		position.FarmAmount = stake
		position.StartedAt = time.Now()
		position.EndedAt = nil

		if err := s.lockStake(ctx, tx, position); err != nil {
			return err
		}
		return s.farmings.WithTrx(tx).Update(ctx, position.ID, map[string]any{
			"status":      StatusFarming,
			"farm_amount": stake,
			"started_at":  position.StartedAt,
			"ended_at":    nil,
		})
	})
	if err != nil {
		return nil, err
	}
	return position, nil
}

// Unfarm settles the account's active position on the content: the stake
// moves back to the personal wallet and the position becomes farmed.
func (s *Service) Unfarm(ctx context.Context, contentID, accountID string) (*ContentFarming, error) {
	position, err := s.activePosition(ctx, contentID, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.settle(ctx, position, StatusFarmed); err != nil {
		return nil, err
	}
	return position, nil
}

// ExpireFarm settles a position the owner never released. Same movement as
// unfarm, distinct terminal status.
func (s *Service) ExpireFarm(ctx context.Context, position *ContentFarming) error {
	if position == nil || position.Status != StatusFarming {
		return ErrContentFarmingNotFound
	}
	return s.settle(ctx, position, StatusExpired)
}

func (s *Service) GetContentFarming(ctx context.Context, contentID, accountID string) (*ContentFarming, error) {
	position, err := s.farmings.FindOne(ctx, &ContentFarming{ContentID: contentID, AccountID: accountID})
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrContentFarmingNotFound
	}
	return position, nil
}

// FindExpired returns active positions older than the farming duration.
func (s *Service) FindExpired(ctx context.Context, now time.Time) ([]*ContentFarming, error) {
	var positions []*ContentFarming
	err := s.db.WithContext(ctx).
		Where("status = ? AND started_at <= ?", StatusFarming, now.Add(-s.duration)).
		Find(&positions).Error
	return positions, err
}

func (s *Service) activePosition(ctx context.Context, contentID, accountID string) (*ContentFarming, error) {
	position, err := s.farmings.FindOne(ctx, &ContentFarming{
		ContentID: contentID,
		AccountID: accountID,
		Status:    StatusFarming,
	})
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrContentFarmingNotFound
	}
	return position, nil
}

// stakeAmount reads both wallets under row locks so concurrent farms against
// the same account serialize at the database.
func (s *Service) stakeAmount(ctx context.Context, tx *gorm.DB, accountID string) (decimal.Decimal, error) {
	spendable, err := s.ledgers.GetBalanceTx(ctx, tx, accountID, ledger.WalletPersonal)
	if err != nil {
		return decimal.Zero, err
	}
	farmed, err := s.ledgers.GetBalanceTx(ctx, tx, accountID, ledger.WalletFarmLocked)
	if err != nil {
		return decimal.Zero, err
	}

	stake := money.Round(money.Min(s.rate.Mul(spendable.Add(farmed)), spendable))
	if !stake.IsPositive() {
		return decimal.Zero, ErrNotEnoughBalance
	}
	return stake, nil
}

func (s *Service) checkCapacity(ctx context.Context, tx *gorm.DB, contentID string) error {
	active, err := s.farmings.WithTrx(tx).Count(ctx, &ContentFarming{
		ContentID: contentID,
		Status:    StatusFarming,
	})
	if err != nil {
		return err
	}
	if s.maxFarmers > 0 && active >= int64(s.maxFarmers) {
		return ErrContentFarmingLimit
	}
	return nil
}

func (s *Service) lockStake(ctx context.Context, tx *gorm.DB, position *ContentFarming) error {
	_, err := s.ledgers.CreateTransaction(ctx, tx, map[string]string{
		"type":      "farm-lock",
		"farmingId": position.ID,
		"contentId": position.ContentID,
	}, []ledger.Entry{
		ledger.DebitAccount(position.AccountID, ledger.WalletPersonal, position.FarmAmount),
		ledger.CreditAccount(position.AccountID, ledger.WalletFarmLocked, position.FarmAmount),
	})
	return err
}

func (s *Service) settle(ctx context.Context, position *ContentFarming, status Status) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// The transition is conditional on the row still farming: a caller
		// holding a stale snapshot (expiry sweep racing an unfarm, or two
		// concurrent releases) must not credit the stake back a second time.
		res := tx.Model(&ContentFarming{}).
			Where("id = ? AND status = ?", position.ID, StatusFarming).
			Updates(map[string]any{
				"status":   status,
				"ended_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrContentFarmingNotFound
		}

		if position.FarmAmount.IsPositive() {
			_, err := s.ledgers.CreateTransaction(ctx, tx, map[string]string{
				"type":      "farm-release",
				"farmingId": position.ID,
				"contentId": position.ContentID,
			}, []ledger.Entry{
				ledger.DebitAccount(position.AccountID, ledger.WalletFarmLocked, position.FarmAmount),
				ledger.CreditAccount(position.AccountID, ledger.WalletPersonal, position.FarmAmount),
			})
			if err != nil {
				return err
			}
		}

		position.Status = status
		position.EndedAt = &now
		return nil
	})
}
