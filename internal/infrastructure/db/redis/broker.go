package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/identity-system/internal/rpc"
)

const defaultReplyTTL = time.Minute

// Broker carries RPC messages over Redis lists: LPUSH to publish, BRPOP to
// receive. Competing receivers on one list each get distinct messages.
// Reply queues expire when left unread so abandoned clients do not leak keys.
type Broker struct {
	client   *redis.Client
	replyTTL time.Duration
}

var _ rpc.Broker = (*Broker)(nil)

func NewBroker(client *redis.Client, replyTTL time.Duration) *Broker {
	if replyTTL <= 0 {
		replyTTL = defaultReplyTTL
	}
	return &Broker{client: client, replyTTL: replyTTL}
}

func (b *Broker) Publish(ctx context.Context, queue string, body []byte) error {
	if !strings.HasPrefix(queue, rpc.ReplyQueuePrefix) {
		if err := b.client.LPush(ctx, queue, body).Err(); err != nil {
			return fmt.Errorf("broker publish %s: %w", queue, err)
		}
		return nil
	}

	pipe := b.client.TxPipeline()
	pipe.LPush(ctx, queue, body)
	pipe.Expire(ctx, queue, b.replyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("broker publish %s: %w", queue, err)
	}
	return nil
}

func (b *Broker) Receive(ctx context.Context, queue string, wait time.Duration) ([]byte, bool, error) {
	res, err := b.client.BRPop(ctx, wait, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("broker receive %s: %w", queue, err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, false, fmt.Errorf("broker receive %s: unexpected reply %v", queue, res)
	}
	return []byte(res[1]), true, nil
}

// Ping checks connectivity to the underlying Redis server.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
