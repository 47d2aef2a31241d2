package campaign

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeVerifyMobile   Type = "verify-mobile"
	TypeFriendReferral Type = "friend-referral"
	TypeContentReach   Type = "content-reach"
)

type Status string

const (
	// StatusScheduled campaigns pay out per claim while the window is open.
	StatusScheduled Status = "scheduled"
	// StatusCalculating campaigns accumulate until the window closes, then
	// the sweep distributes the pool and moves them to complete.
	StatusCalculating Status = "calculating"
	StatusComplete    Status = "complete"
)

type Campaign struct {
	ID              string          `gorm:"column:id;primaryKey"`
	Type            Type            `gorm:"column:type;index"`
	Status          Status          `gorm:"column:status;index"`
	Name            string          `gorm:"column:name"`
	StartDate       time.Time       `gorm:"column:start_date"`
	EndDate         time.Time       `gorm:"column:end_date"`
	TotalRewards    decimal.Decimal `gorm:"column:total_rewards;type:decimal(38,8)"`
	RewardBalance   decimal.Decimal `gorm:"column:reward_balance;type:decimal(38,8)"`
	RewardsPerClaim decimal.Decimal `gorm:"column:rewards_per_claim;type:decimal(38,8)"`
	MaxClaims       int64           `gorm:"column:max_claims"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
