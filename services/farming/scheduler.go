package farming

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"castcle-backend/pkg/config"
)

// Scheduler settles positions whose farming duration has elapsed.
type Scheduler struct {
	service  *Service
	interval time.Duration
	cancel   context.CancelFunc
}

func NewScheduler(cfg *config.Config, svc *Service) *Scheduler {
	return &Scheduler{
		service:  svc,
		interval: cfg.Scheduler.FarmExpiryInterval,
	}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if s.cancel != nil {
				s.cancel()
			}
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started farm expiry sweep",
		zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] farm expiry sweep stopped")
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	positions, err := s.service.FindExpired(ctx, time.Now())
	if err != nil {
		zap.L().Error("[Scheduler] failed to find expired farms", zap.Error(err))
		return
	}

	wg := errgroup.Group{}
	wg.SetLimit(4)
	for _, position := range positions {
		wg.Go(func() error {
			if err := s.service.ExpireFarm(ctx, position); err != nil {
				zap.L().Error("[Scheduler] failed to expire farm",
					zap.String("farming_id", position.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = wg.Wait()

	if len(positions) > 0 {
		zap.L().Info("[Scheduler] expired farms settled", zap.Int("count", len(positions)))
	}
}
