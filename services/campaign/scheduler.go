package campaign

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"castcle-backend/pkg/config"
)

// Scheduler periodically drains closed content-reach campaigns.
type Scheduler struct {
	service  *Service
	interval time.Duration
	cancel   context.CancelFunc
}

func NewScheduler(cfg *config.Config, svc *Service) *Scheduler {
	return &Scheduler{
		service:  svc,
		interval: cfg.Scheduler.CampaignSweepInterval,
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
	zap.L().Info("[Scheduler] started content reach campaign sweep",
		zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] campaign sweep stopped")
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	start := time.Now()
	if err := s.service.ClaimContentReachAirdrops(ctx); err != nil {
		zap.L().Error("[Scheduler] content reach sweep failed", zap.Error(err))
		return
	}
	zap.L().Info("[Scheduler] content reach sweep finished",
		zap.Duration("duration", time.Since(start)))
}
