package farming

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	// StatusFarming positions hold locked stake.
	StatusFarming Status = "farming"
	// StatusFarmed positions were settled by the owner; the stake is back in
	// the personal wallet. A settled position can be re-staked.
	StatusFarmed Status = "farmed"
	// StatusExpired positions were settled by the expiry sweep instead of the
	// owner. Economically identical to farmed.
	StatusExpired Status = "expired"
)

// Settled reports whether the position's stake has been released.
func (s Status) Settled() bool {
	return s == StatusFarmed || s == StatusExpired
}

type Visibility string

const (
	VisibilityPublish Visibility = "publish"
	VisibilityDeleted Visibility = "deleted"
)

// Content is the farmable object. Reach feeds the content-reach campaign
// distribution.
type Content struct {
	ID              string     `gorm:"column:id;primaryKey"`
	AuthorAccountID string     `gorm:"column:author_account_id;index"`
	Reach           int64      `gorm:"column:reach"`
	Visibility      Visibility `gorm:"column:visibility;index;default:publish"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// ContentFarming is one farming episode of one account on one content. The
// row is reused across episodes: re-staking a farmed position resets
// FarmAmount and StartedAt rather than inserting a new row.
type ContentFarming struct {
	ID         string          `gorm:"column:id;primaryKey"`
	ContentID  string          `gorm:"column:content_id;index:idx_content_account,unique"`
	AccountID  string          `gorm:"column:account_id;index:idx_content_account,unique"`
	Status     Status          `gorm:"column:status;index"`
	FarmAmount decimal.Decimal `gorm:"column:farm_amount;type:decimal(38,8)"`
	StartedAt  time.Time       `gorm:"column:started_at"`
	EndedAt    *time.Time      `gorm:"column:ended_at"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
