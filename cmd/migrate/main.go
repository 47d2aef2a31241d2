package main

import (
	"context"
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"castcle-backend/pkg/config"
	"castcle-backend/pkg/db"
	"castcle-backend/pkg/logger"
	"castcle-backend/services/account"
	"castcle-backend/services/campaign"
	"castcle-backend/services/farming"
	"castcle-backend/services/ledger"
	"castcle-backend/services/notification"
	"castcle-backend/services/queue"
)

// Applies the schema and exits. Run once before starting the wallet and
// worker binaries.
func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Invoke(migrate),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)
	app.Run()
}

func migrate(lc fx.Lifecycle, shutdowner fx.Shutdowner, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			err := gdb.AutoMigrate(
				&ledger.Transaction{},
				&ledger.Posting{},
				&ledger.CAccount{},
				&account.Account{},
				&campaign.Campaign{},
				&queue.Queue{},
				&farming.Content{},
				&farming.ContentFarming{},
				&notification.Notification{},
			)
			if err != nil {
				zap.L().Error("migration failed", zap.Error(err))
				return err
			}
			zap.L().Info("migration complete")
			return shutdowner.Shutdown()
		},
	})
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
