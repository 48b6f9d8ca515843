package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quayside/vendorq/internal/dispatch"
)

// Queue is the dispatch queue contract: priority-ordered, FIFO within a
// priority, at-least-once delivery. The transport attempts each message
// exactly once; retries are always fresh messages enqueued by the worker.
type Queue interface {
	Enqueue(ctx context.Context, msg dispatch.Message) error
	// EnqueueAfter parks the message until the delay elapses, then it is
	// promoted into its priority band by MoveDue.
	EnqueueAfter(ctx context.Context, msg dispatch.Message, delay time.Duration) error
	// Dequeue blocks until a message is available or ctx is done.
	Dequeue(ctx context.Context) (*dispatch.Message, error)
	// MoveDue promotes delayed messages whose ready time has passed.
	MoveDue(ctx context.Context, now time.Time, batch int64) (int, error)
	// Depths reports the current high/low/delayed band sizes.
	Depths(ctx context.Context) (high, low, delayed int64, err error)
}

const (
	highKey    = "vendorq:dispatch:high"
	lowKey     = "vendorq:dispatch:low"
	delayedKey = "vendorq:dispatch:delayed"
)

// Redis implements Queue on two Redis lists plus a delay ZSET. BRPOP over
// [high, low] checks the keys in order, which yields the sync-before-async
// ordering; LPUSH/BRPOP keeps FIFO within a band.
type Redis struct {
	rdb        *redis.Client
	popTimeout time.Duration
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, popTimeout: 2 * time.Second}
}

func keyFor(p dispatch.Priority) string {
	if p == dispatch.PriorityHigh {
		return highKey
	}
	return lowKey
}

func (q *Redis) Enqueue(ctx context.Context, msg dispatch.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal dispatch message: %w", err)
	}
	if err := q.rdb.LPush(ctx, keyFor(msg.Priority), b).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

func (q *Redis) EnqueueAfter(ctx context.Context, msg dispatch.Message, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, msg)
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal dispatch message: %w", err)
	}
	readyAt := time.Now().Add(delay).UnixMilli()
	if err := q.rdb.ZAdd(ctx, delayedKey, redis.Z{Score: float64(readyAt), Member: b}).Err(); err != nil {
		return fmt.Errorf("enqueue delayed: %w", err)
	}
	return nil
}

func (q *Redis) Dequeue(ctx context.Context) (*dispatch.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Short BRPOP timeout so shutdown is noticed promptly.
		res, err := q.rdb.BRPop(ctx, q.popTimeout, highKey, lowKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dequeue: %w", err)
		}
		if len(res) != 2 {
			continue
		}
		var msg dispatch.Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal dispatch message: %w", err)
		}
		return &msg, nil
	}
}

func (q *Redis) MoveDue(ctx context.Context, now time.Time, batch int64) (int, error) {
	members, err := q.rdb.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", now.UnixMilli()), Offset: 0, Count: batch,
	}).Result()
	if err != nil || len(members) == 0 {
		return 0, err
	}

	pipe := q.rdb.TxPipeline()
	for _, m := range members {
		var msg dispatch.Message
		if err := json.Unmarshal([]byte(m), &msg); err != nil {
			// Unparseable entries are dropped rather than promoted forever.
			pipe.ZRem(ctx, delayedKey, m)
			continue
		}
		pipe.LPush(ctx, keyFor(msg.Priority), m)
		pipe.ZRem(ctx, delayedKey, m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("promote delayed messages: %w", err)
	}
	return len(members), nil
}

func (q *Redis) Depths(ctx context.Context) (int64, int64, int64, error) {
	pipe := q.rdb.Pipeline()
	highCmd := pipe.LLen(ctx, highKey)
	lowCmd := pipe.LLen(ctx, lowKey)
	delayedCmd := pipe.ZCard(ctx, delayedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, 0, err
	}
	return highCmd.Val(), lowCmd.Val(), delayedCmd.Val(), nil
}
