package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig names the Redis connection the bus publishes/subscribes
// through. The first five fields match config.RedisConfig's;
// HealthCheckInterval has no counterpart there and is set separately.
type RedisConfig struct {
	Addr                string
	Password            string
	DB                  int
	PoolSize            int
	MinIdleConns        int
	HealthCheckInterval time.Duration
}

// RedisBus publishes events over Redis pub/sub, used when multiple
// engine processes must observe the same consolidation/merge/duplicate
// notifications. Connects and pings on construction, then runs a
// periodic health-check loop just as internal/cache.Manager does for
// its key/value connection — the same bootstrap, repurposed from
// GET/SET to PUBLISH/SUBSCRIBE.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	stopCh chan struct{}
}

// NewRedisBus connects to cfg.Addr, verifies it with a Ping, and starts
// the health-check loop when cfg.HealthCheckInterval > 0.
func NewRedisBus(cfg RedisConfig, logger *zap.Logger) (*RedisBus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis event bus: %w", err)
	}

	b := &RedisBus{
		client: client,
		logger: logger.With(zap.String("component", "events_redis")),
		stopCh: make(chan struct{}),
	}

	if cfg.HealthCheckInterval > 0 {
		go b.healthCheckLoop(cfg.HealthCheckInterval)
	}

	b.logger.Info("redis event bus connected", zap.String("addr", cfg.Addr))
	return b, nil
}

// Publish marshals evt and publishes it to topic. A failure is logged
// and swallowed: event publication is an ambient concern, never fatal
// to the caller (§7).
func (b *RedisBus) Publish(ctx context.Context, topic string, evt Event) {
	data, err := marshalEvent(evt)
	if err != nil {
		b.logger.Warn("marshal event failed", zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, topic, data).Err(); err != nil {
		b.logger.Warn("publish event failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Subscribe starts a Redis subscription on topic, dispatching each
// received message to handler until the returned unsubscribe func is
// called.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, handler Handler) (func(), error) {
	sub := b.client.Subscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %q: %w", topic, err)
	}

	ch := sub.Channel()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				evt, err := unmarshalEvent([]byte(msg.Payload))
				if err != nil {
					b.logger.Warn("decode event failed", zap.Error(err))
					continue
				}
				handler(evt)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = sub.Close()
	}, nil
}

func (b *RedisBus) healthCheckLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := b.client.Ping(ctx).Err(); err != nil {
				b.logger.Error("event bus health check failed", zap.Error(err))
			}
			cancel()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the health-check loop and closes the underlying client.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.stopCh)
	return b.client.Close()
}
