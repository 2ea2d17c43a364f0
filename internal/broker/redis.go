package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow-api/internal/dto"
)

// RedisBroker opens scoring engine channels over Redis pub/sub. Routing keys
// map directly to Redis channel names.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroker constructs the broker.
func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, logger: logger}
}

// OpenPublishChannel binds an outbound channel to a routing key.
func (b *RedisBroker) OpenPublishChannel(ctx context.Context, routingKey string) (PublishChannel, error) {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("open publish channel %q: %w", routingKey, err)
	}
	b.logger.Sugar().Infow("opened raw grade publish channel", "routing_key", routingKey)
	return &redisPublishChannel{client: b.client, routingKey: routingKey}, nil
}

// OpenReceiveChannel subscribes to a routing key and feeds decoded scored
// messages to the handler until the channel is closed.
func (b *RedisBroker) OpenReceiveChannel(ctx context.Context, routingKey string, onMessage ScoredHandler) (ReceiveChannel, error) {
	pubsub := b.client.Subscribe(ctx, routingKey)

	// force the SUBSCRIBE round trip so open failures surface here, not
	// in the consume loop
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("open receive channel %q: %w", routingKey, err)
	}

	ch := &redisReceiveChannel{pubsub: pubsub}
	ch.wg.Add(1)
	go func() {
		defer ch.wg.Done()
		for msg := range pubsub.Channel() {
			var scored dto.ScoredMessage
			if err := json.Unmarshal([]byte(msg.Payload), &scored); err != nil {
				b.logger.Sugar().Errorw("dropping malformed scored message", "routing_key", routingKey, "error", err)
				continue
			}
			onMessage(scored)
		}
	}()

	b.logger.Sugar().Infow("opened score received channel", "routing_key", routingKey)
	return ch, nil
}

type redisPublishChannel struct {
	client     *redis.Client
	routingKey string

	mu     sync.Mutex
	closed bool
}

func (c *redisPublishChannel) Publish(ctx context.Context, message interface{}) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("publish channel %q is closed", c.routingKey)
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message for %q: %w", c.routingKey, err)
	}
	if err := c.client.Publish(ctx, c.routingKey, body).Err(); err != nil {
		return fmt.Errorf("publish to %q: %w", c.routingKey, err)
	}
	return nil
}

func (c *redisPublishChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type redisReceiveChannel struct {
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

func (c *redisReceiveChannel) Close() error {
	err := c.pubsub.Close()
	c.wg.Wait()
	return err
}
