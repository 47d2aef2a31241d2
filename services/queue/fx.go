package queue

import "go.uber.org/fx"

var Module = fx.Module("queue.service",
	fx.Provide(NewService),
)
