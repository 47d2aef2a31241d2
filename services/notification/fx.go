package notification

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"

	"castcle-backend/pkg/taskname"
)

var Module = fx.Module("notification.service",
	fx.Provide(NewService),
)

var Tasks = fx.Module("notification.tasks",
	fx.Invoke(registerTasks),
)

func registerTasks(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.NotificationSend, s.ProcessSend)
}
