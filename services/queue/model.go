package queue

import (
	"time"

	"castcle-backend/services/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

type Topic string

const (
	TopicClaimAirdrop Topic = "claim-airdrop"
)

// Recipient is one airdrop target inside a claim payload. A zero Amount means
// "use the campaign's per-claim reward".
type Recipient struct {
	AccountID  string            `json:"accountId"`
	WalletType ledger.WalletType `json:"walletType"`
	Amount     decimal.Decimal   `json:"amount"`
}

type ClaimAirdropPayload struct {
	Topic      Topic       `json:"topic"`
	CampaignID string      `json:"campaignId"`
	To         []Recipient `json:"to"`
}

func NewClaimAirdropPayload(campaignID string, to []Recipient) ClaimAirdropPayload {
	return ClaimAirdropPayload{
		Topic:      TopicClaimAirdrop,
		CampaignID: campaignID,
		To:         to,
	}
}

// Queue is the durable representation of a pending unit of work. Status only
// moves forward: waiting → done | failed | cancelled.
type Queue struct {
	ID        string                                  `gorm:"column:id;primaryKey"`
	Status    Status                                  `gorm:"column:status;index;default:waiting"`
	Payload   datatypes.JSONType[ClaimAirdropPayload] `gorm:"column:payload"`
	CreatedAt time.Time                               `gorm:"column:created_at;autoCreateTime"`
	StartedAt *time.Time                              `gorm:"column:started_at"`
	EndedAt   *time.Time                              `gorm:"column:ended_at"`
}

// TaskPayload is what travels through asynq; the durable record is re-fetched
// by ID so redelivery observes current status.
type TaskPayload struct {
	QueueID string `json:"queueId"`
}
