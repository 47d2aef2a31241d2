package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pkgasynq "castcle-backend/pkg/asynq"
	"castcle-backend/pkg/db/option"
	"castcle-backend/pkg/errutil"
	"castcle-backend/pkg/repository"
	"castcle-backend/pkg/taskname"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrQueueNotFound   = errutil.NotFound("QUEUE_NOT_FOUND", nil)
	ErrQueueNotWaiting = errutil.Conflict("QUEUE_NOT_WAITING", nil)
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	enqueuer pkgasynq.Enqueuer

	queue repository.Repository[Queue]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Enqueuer pkgasynq.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		enqueuer: p.Enqueuer,

		queue: repository.ProvideStore[Queue](p.DB),
	}
}

// EnqueueClaimAirdrop persists the durable record first, then submits the
// asynq task carrying only the record ID. Delivery is at-least-once; the
// consumer re-validates against the durable record.
func (s *Service) EnqueueClaimAirdrop(ctx context.Context, payload ClaimAirdropPayload) (*Queue, error) {
	record := &Queue{
		ID:      s.node.Generate().String(),
		Status:  StatusWaiting,
		Payload: datatypes.NewJSONType(payload),
	}

	if err := s.queue.Create(ctx, record); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(TaskPayload{QueueID: record.ID})
	if err != nil {
		return nil, err
	}

	if s.enqueuer != nil {
		// MaxRetry 0: failure handling is the consumer's transaction
		// rollback + terminal Failed status, not redelivery.
		_, err = s.enqueuer.Enqueue(ctx, asynq.NewTask(taskname.CampaignClaimAirdrop, raw),
			asynq.Queue("critical"),
			asynq.MaxRetry(0),
		)
		if err != nil {
			zap.L().Error("failed to submit claim task", zap.String("queue_id", record.ID), zap.Error(err))
			if ferr := s.Finish(ctx, record.ID, StatusFailed); ferr != nil {
				zap.L().Error("failed to mark queue record failed", zap.String("queue_id", record.ID), zap.Error(ferr))
			}
			return nil, err
		}
	}

	return record, nil
}

func (s *Service) FindByID(ctx context.Context, queueID string) (*Queue, error) {
	record, err := s.queue.FindOne(ctx, &Queue{ID: queueID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrQueueNotFound
	}
	return record, nil
}

// MarkStarted stamps StartedAt on a still-waiting record. A record that left
// waiting in the meantime (cancelled by an account deletion, or claimed by a
// concurrent consumer) is a lost race: ErrQueueNotWaiting, no write.
func (s *Service) MarkStarted(ctx context.Context, queueID string) error {
	res := s.db.WithContext(ctx).Model(&Queue{}).
		Where("id = ? AND status = ?", queueID, StatusWaiting).
		Update("started_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrQueueNotWaiting
	}
	return nil
}

// Finish moves the record from waiting to a terminal status and stamps
// EndedAt. Terminal states are sticky: once done, failed or cancelled the
// record never changes again, so a racing writer gets ErrQueueNotWaiting.
func (s *Service) Finish(ctx context.Context, queueID string, status Status) error {
	res := s.db.WithContext(ctx).Model(&Queue{}).
		Where("id = ? AND status = ?", queueID, StatusWaiting).
		Updates(map[string]any{
			"status":   status,
			"ended_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrQueueNotWaiting
	}
	return nil
}

// CountClaims counts how many non-failed claim recipients reference the
// account for the campaign. Payloads are decoded in process; the queue log is
// small relative to the ledger and the count gates enqueueing only —
// authoritative re-validation happens inside the consumer's transaction.
func (s *Service) CountClaims(ctx context.Context, campaignID, accountID string) (int64, error) {
	records, err := s.queue.Find(ctx, &Queue{},
		option.ApplyOperator(option.Condition{Field: "status", Operator: option.NE, Value: StatusFailed}),
	)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, record := range records {
		payload := record.Payload.Data()
		if payload.Topic != TopicClaimAirdrop || payload.CampaignID != campaignID {
			continue
		}
		for _, to := range payload.To {
			if to.AccountID == accountID {
				count++
			}
		}
	}

	return count, nil
}

// CancelWaitingByAccount cancels still-waiting claims that target the account.
// Used when an account is deleted.
func (s *Service) CancelWaitingByAccount(ctx context.Context, accountID string) (int, error) {
	records, err := s.queue.Find(ctx, &Queue{Status: StatusWaiting})
	if err != nil {
		return 0, err
	}

	var cancelled int
	for _, record := range records {
		payload := record.Payload.Data()
		for _, to := range payload.To {
			if to.AccountID != accountID {
				continue
			}
			if err := s.Finish(ctx, record.ID, StatusCancelled); err != nil {
				// A record that left waiting since the read was settled by
				// its consumer; nothing to cancel anymore.
				if isNotWaiting(err) {
					break
				}
				return cancelled, err
			}
			cancelled++
			break
		}
	}

	return cancelled, nil
}

// IsNotWaiting reports whether err is the lost-race signal from MarkStarted
// or Finish.
func IsNotWaiting(err error) bool {
	return isNotWaiting(err)
}

func isNotWaiting(err error) bool {
	var be errutil.BaseError
	return errors.As(err, &be) && be.Message == "QUEUE_NOT_WAITING"
}
