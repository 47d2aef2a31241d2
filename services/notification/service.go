package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgasynq "castcle-backend/pkg/asynq"
	"castcle-backend/pkg/repository"
	"castcle-backend/pkg/taskname"
)

type Service struct {
	node     *snowflake.Node
	enqueuer pkgasynq.Enqueuer

	notifications repository.Repository[Notification]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Enqueuer pkgasynq.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:     p.Node,
		enqueuer: p.Enqueuer,

		notifications: repository.ProvideStore[Notification](p.DB),
	}
}

// Notify persists the outbox row and hands delivery to the worker. Errors are
// logged, not returned: notifications never fail the flow that produced them.
func (s *Service) Notify(ctx context.Context, accountID string, kind Kind, message string) {
	row := &Notification{
		ID:        s.node.Generate().String(),
		AccountID: accountID,
		Kind:      kind,
		Message:   message,
		Status:    StatusPending,
	}
	if err := s.notifications.Create(ctx, row); err != nil {
		zap.L().Error("failed to persist notification", zap.String("account_id", accountID), zap.Error(err))
		return
	}

	if s.enqueuer == nil {
		return
	}
	raw, err := json.Marshal(TaskPayload{NotificationID: row.ID})
	if err != nil {
		zap.L().Error("failed to encode notification task", zap.Error(err))
		return
	}
	if _, err := s.enqueuer.Enqueue(ctx, asynq.NewTask(taskname.NotificationSend, raw), asynq.Queue("low")); err != nil {
		zap.L().Error("failed to enqueue notification task", zap.String("notification_id", row.ID), zap.Error(err))
	}
}

// ProcessSend marks the row delivered. The actual push to the provider lives
// outside this service.
func (s *Service) ProcessSend(ctx context.Context, t *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("malformed notification task payload", zap.Error(err))
		return nil
	}

	row, err := s.notifications.FindOne(ctx, &Notification{ID: payload.NotificationID})
	if err != nil {
		return err
	}
	if row == nil || row.Status == StatusSent {
		return nil
	}

	now := time.Now()
	return s.notifications.Update(ctx, row.ID, map[string]any{
		"status":  StatusSent,
		"sent_at": now,
	})
}
