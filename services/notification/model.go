package notification

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
)

type Kind string

const (
	KindAirdropReceived Kind = "airdrop-received"
)

// Notification is the durable outbox row; delivery to the push provider is
// external and happens in the worker.
type Notification struct {
	ID        string     `gorm:"column:id;primaryKey"`
	AccountID string     `gorm:"column:account_id;index"`
	Kind      Kind       `gorm:"column:kind"`
	Message   string     `gorm:"column:message"`
	Status    Status     `gorm:"column:status;index;default:pending"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	SentAt    *time.Time `gorm:"column:sent_at"`
}

type TaskPayload struct {
	NotificationID string `json:"notificationId"`
}
