package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisQueue publishes events onto a Redis list so that any replica's
// worker can deliver them.
type RedisQueue struct {
	client  *redis.Client
	key     string
	handler Handler
	log     zerolog.Logger
	timeout time.Duration
}

func NewRedisQueue(client *redis.Client, key string, handler Handler, log zerolog.Logger) *RedisQueue {
	return &RedisQueue{
		client:  client,
		key:     key,
		handler: handler,
		log:     log.With().Str("component", "notify.redis").Logger(),
		timeout: 5 * time.Second,
	}
}

func (q *RedisQueue) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding notification event")
	}
	return errors.Wrap(q.client.RPush(ctx, q.key, payload).Err(), "pushing notification event")
}

// Run pops events until ctx is cancelled.
func (q *RedisQueue) Run(ctx context.Context) {
	for {
		res, err := q.client.BLPop(ctx, q.timeout, q.key).Result()
		if ctx.Err() != nil {
			q.log.Info().Msg("notification worker stopped")
			return
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			q.log.Error().Err(err).Msg("reading notification queue")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// BLPOP returns [key, value].
		if len(res) != 2 {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
			q.log.Error().Err(err).Msg("dropping malformed notification event")
			continue
		}
		q.handler.Handle(ctx, ev)
	}
}
