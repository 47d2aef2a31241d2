package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// Generator hands out human-readable reference codes. Codes are unique per
// day via a redis counter; they identify transactions in support tooling and
// are distinct from snowflake primary keys.
type Generator interface {
	NextTransactionCode(ctx context.Context) (string, error)
	NextQueueCode(ctx context.Context) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{rdb: p.Redis}
}

func (g *RedisGenerator) NextTransactionCode(ctx context.Context) (string, error) {
	return g.nextDailyCode(ctx, "TXN")
}

func (g *RedisGenerator) NextQueueCode(ctx context.Context) (string, error) {
	return g.nextDailyCode(ctx, "JOB")
}

func (g *RedisGenerator) nextDailyCode(ctx context.Context, prefix string) (string, error) {
	datePart := time.Now().UTC().Format("20060102")
	key := fmt.Sprintf("seq:%s:%s", prefix, datePart)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	if seq == 1 {
		// first code of the day owns the TTL
		g.rdb.Expire(ctx, key, 48*time.Hour)
	}

	return fmt.Sprintf("%s-%s-%06d", prefix, datePart, seq), nil
}
