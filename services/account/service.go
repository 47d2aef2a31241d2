package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"castcle-backend/pkg/errutil"
	"castcle-backend/pkg/repository"
	"castcle-backend/services/queue"
)

var ErrAccountNotFound = errutil.NotFound("USER_OR_PAGE_NOT_FOUND", nil)

// AirdropClaimer triggers a campaign claim on behalf of an account. The
// campaign engine provides the implementation; the indirection keeps this
// package from depending on it.
type AirdropClaimer interface {
	ClaimVerifyMobileAirdrop(ctx context.Context, accountID string) error
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Node   *snowflake.Node
	Queues *queue.Service
}

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	queues  *queue.Service
	claimer AirdropClaimer

	accounts repository.Repository[Account]
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		queues:   p.Queues,
		accounts: repository.ProvideStore[Account](p.DB),
	}
}

// SetClaimer wires the campaign engine in after construction. Injecting it
// through the constructor would close a provider cycle (ledger needs the
// account finder, campaigns need the ledger, the claimer is a campaign).
func (s *Service) SetClaimer(c AirdropClaimer) {
	s.claimer = c
}

type CreateAccountRequest struct {
	IsGuest    bool   `json:"isGuest"`
	ReferralBy string `json:"referralBy"`
}

// CreateAccount registers a new account, guest or registered. When the
// account carries a referral the referrer's counter is bumped in the same
// transaction.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	acc := &Account{
		ID:         s.node.Generate().String(),
		IsGuest:    req.IsGuest,
		Visibility: VisibilityPublish,
		ReferralBy: req.ReferralBy,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.ReferralBy != "" {
			referrer, err := s.accounts.WithTrx(tx).FindOne(ctx, &Account{ID: req.ReferralBy, Visibility: VisibilityPublish})
			if err != nil {
				return err
			}
			if referrer == nil {
				return ErrAccountNotFound
			}
			if err := tx.Model(&Account{}).
				Where("id = ?", referrer.ID).
				UpdateColumn("referral_count", gorm.Expr("referral_count + ?", 1)).Error; err != nil {
				return err
			}
		}
		return s.accounts.WithTrx(tx).Create(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	acc, err := s.accounts.FindOne(ctx, &Account{ID: accountID, Visibility: VisibilityPublish})
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// Exists reports whether a live account owns the id. It backs the ledger's
// account check.
func (s *Service) Exists(ctx context.Context, accountID string) (bool, error) {
	count, err := s.accounts.Count(ctx, &Account{ID: accountID, Visibility: VisibilityPublish})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// VerifyMobile marks the account's mobile number as verified and fires the
// verify-mobile airdrop claim. The claim path reruns every eligibility gate,
// so a repeated verification cannot double-pay.
func (s *Service) VerifyMobile(ctx context.Context, accountID string) (*Account, error) {
	acc, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acc.MobileVerified {
		acc.MobileVerified = true
		acc.IsGuest = false
		if err := s.accounts.Update(ctx, acc.ID, map[string]any{
			"mobile_verified": true,
			"is_guest":        false,
		}); err != nil {
			return nil, err
		}
	}

	if s.claimer != nil {
		if err := s.claimer.ClaimVerifyMobileAirdrop(ctx, accountID); err != nil {
			// The verification itself stands; the claim is best effort here
			// and surfaces its own eligibility errors.
			var be errutil.BaseError
			if !errors.As(err, &be) {
				return nil, err
			}
			zap.L().Info("verify mobile airdrop not claimed",
				zap.String("account_id", accountID),
				zap.String("reason", be.Message),
			)
		}
	}
	return acc, nil
}

// DeleteAccount soft deletes the account and withdraws any airdrop still
// queued for it. Pending payouts must not land on a deleted account.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	acc, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.accounts.WithTrx(tx).Update(ctx, acc.ID, map[string]any{
			"visibility": VisibilityDeleted,
		}); err != nil {
			return err
		}
		if acc.ReferralBy != "" {
			if err := tx.Model(&Account{}).
				Where("id = ? AND referral_count > 0", acc.ReferralBy).
				UpdateColumn("referral_count", gorm.Expr("referral_count - ?", 1)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	cancelled, err := s.queues.CancelWaitingByAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("cancel pending airdrops: %w", err)
	}
	if cancelled > 0 {
		zap.L().Info("cancelled pending airdrops for deleted account",
			zap.String("account_id", accountID),
			zap.Int("cancelled", cancelled),
		)
	}
	return nil
}
