package bus

import (
	"context"

	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Redis is a topic shared by processes through a redis channel.
type Redis struct {
	rdb   *redis.Client
	topic string
	log   *logger.Logger
}

func NewRedis(conf config.Bus, log *logger.Logger) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return &Redis{rdb: rdb, topic: conf.Redis.Topic, log: log.Tag("bus")}
}

// Ping checks the connection.
func (b *Redis) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *Redis) Publish(ctx context.Context, data []byte) error {
	return b.rdb.Publish(ctx, b.topic, data).Err()
}

// Subscribe returns once the subscription is confirmed by the server,
// so nothing published after that is missed.
func (b *Redis) Subscribe(ctx context.Context, fn Handler) (func(), error) {
	ps := b.rdb.Subscribe(ctx, b.topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	ch := ps.Channel()
	go func() {
		for msg := range ch {
			fn([]byte(msg.Payload))
		}
		b.log.Debug().Msgf("unsubscribed from %v", b.topic)
	}()
	return func() { _ = ps.Close() }, nil
}

func (b *Redis) Close() error { return b.rdb.Close() }

// New picks the bus from the config.
func New(conf config.Bus, log *logger.Logger) Bus {
	if conf.IsRedis() {
		return NewRedis(conf, log)
	}
	return Shared
}
