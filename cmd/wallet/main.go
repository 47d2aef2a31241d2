package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	pkgasynq "castcle-backend/pkg/asynq"
	"castcle-backend/pkg/config"
	"castcle-backend/pkg/db"
	"castcle-backend/pkg/gen"
	"castcle-backend/pkg/health"
	"castcle-backend/pkg/logger"
	"castcle-backend/pkg/redis"
	"castcle-backend/pkg/sequence"
	"castcle-backend/pkg/server"
	"castcle-backend/services/account"
	"castcle-backend/services/campaign"
	"castcle-backend/services/farming"
	"castcle-backend/services/ledger"
	"castcle-backend/services/notification"
	"castcle-backend/services/queue"
)

func main() {
	opts := appOptions()

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

func appOptions() []fx.Option {
	return []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		sequence.Module,
		pkgasynq.Client,
		pkgasynq.EnqueuerModule,
		fx.Provide(
			func(s *account.Service) ledger.AccountFinder { return s },
		),
		fx.Invoke(db.Otel, db.Metric),

		ledger.Module,
		queue.Module,
		account.Module,
		notification.Module,
		campaign.Module,
		farming.Module,

		server.ProvideHTTPServer,
		health.Module,
		ledger.Routes,
		account.Routes,
		campaign.Routes,
		farming.Routes,

		fxLogger,
	}
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
