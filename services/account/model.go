package account

import (
	"time"

	"gorm.io/datatypes"
)

type Visibility string

const (
	VisibilityPublish Visibility = "publish"
	VisibilityDeleted Visibility = "deleted"
)

// ClaimHistory maps campaign id to the timestamps of honored claims. Its
// length per campaign never exceeds that campaign's MaxClaims; the claim
// consumer enforces this inside its transaction.
type ClaimHistory map[string][]time.Time

type Account struct {
	ID             string                           `gorm:"column:id;primaryKey"`
	IsGuest        bool                             `gorm:"column:is_guest"`
	MobileVerified bool                             `gorm:"column:mobile_verified"`
	Visibility     Visibility                       `gorm:"column:visibility;index;default:publish"`
	ReferralBy     string                           `gorm:"column:referral_by;index"`
	ReferralCount  int64                            `gorm:"column:referral_count"`
	Campaigns      datatypes.JSONType[ClaimHistory] `gorm:"column:campaigns"`
	CreatedAt      time.Time                        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                        `gorm:"column:updated_at;autoUpdateTime"`
}

// ClaimCount returns how many claims the account holds for the campaign.
func (a *Account) ClaimCount(campaignID string) int {
	history := a.Campaigns.Data()
	return len(history[campaignID])
}

// AppendClaim records one honored claim timestamp for the campaign.
func (a *Account) AppendClaim(campaignID string, at time.Time) {
	history := a.Campaigns.Data()
	if history == nil {
		history = ClaimHistory{}
	}
	history[campaignID] = append(history[campaignID], at)
	a.Campaigns = datatypes.NewJSONType(history)
}
