package queue

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/pkg/errors"
)

// urlField is the stream entry field holding the product URL
const urlField = "url"

// Options configures a RedisQueue
type Options struct {
	Addr      string
	DB        int
	Stream    string
	Group     string
	Consumer  string
	MaxLength int64
	// Block bounds each XREADGROUP wait; defaults to 2s
	Block time.Duration
	// Batch is the XREADGROUP count; defaults to 10
	Batch int64
}

// RedisQueue implements Publisher and Consumer on a Redis stream with a consumer group
type RedisQueue struct {
	client *redis.Client
	opts   Options
	log    *logger.Logger
}

// NewRedisQueue creates a new Redis stream queue
func NewRedisQueue(opts Options) *RedisQueue {
	if opts.Block <= 0 {
		opts.Block = 2 * time.Second
	}
	if opts.Batch <= 0 {
		opts.Batch = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})

	return &RedisQueue{
		client: client,
		opts:   opts,
		log:    logger.ForQueue().WithField("stream", opts.Stream),
	}
}

// Ping checks the Redis connection
func (q *RedisQueue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return errors.NewQueue("redis unavailable", err)
	}
	return nil
}

// Publish appends url to the stream, trimming it approximately to MaxLength
func (q *RedisQueue) Publish(ctx context.Context, url string) error {
	args := &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]interface{}{urlField: url},
	}
	if q.opts.MaxLength > 0 {
		args.MaxLen = q.opts.MaxLength
		args.Approx = true
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return errors.NewQueue("failed to publish "+url, err)
	}
	return nil
}

// Trim trims the stream to MaxLength
func (q *RedisQueue) Trim(ctx context.Context) error {
	if q.opts.MaxLength <= 0 {
		return nil
	}
	if err := q.client.XTrimMaxLen(ctx, q.opts.Stream, q.opts.MaxLength).Err(); err != nil {
		return errors.NewQueue("failed to trim stream", err)
	}
	return nil
}

// Consume reads the stream as a member of the consumer group. Entries left
// pending by an earlier run of this consumer are handled first.
func (q *RedisQueue) Consume(ctx context.Context, handler Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	q.log.Info().
		Str("group", q.opts.Group).
		Str("consumer", q.opts.Consumer).
		Msg("Consumer started")

	// "0" replays this consumer's pending entries, ">" reads new ones
	cursor := "0"
	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.opts.Group,
			Consumer: q.opts.Consumer,
			Streams:  []string{q.opts.Stream, cursor},
			Count:    q.opts.Batch,
			Block:    q.opts.Block,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return errors.NewQueue("failed to read stream", err)
		}

		lastID := ""
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				q.handle(ctx, msg, handler)
			}
		}
		if cursor != ">" {
			// walk the pending list once, then switch to new entries
			cursor = lastID
			if lastID == "" {
				cursor = ">"
			}
		}
	}
}

func (q *RedisQueue) handle(ctx context.Context, msg redis.XMessage, handler Handler) {
	url, _ := msg.Values[urlField].(string)
	if url == "" {
		q.log.Warn().Str("id", msg.ID).Msg("Dropping message without url")
		q.ack(ctx, msg.ID)
		return
	}

	err := handler(ctx, url)
	if err != nil {
		q.log.Error().
			Err(err).
			Str("id", msg.ID).
			Str("url", url).
			Str("error_type", string(errors.TypeOf(err))).
			Bool("retryable", errors.IsRetryable(err)).
			Msg("Failed to handle message")
	}
	if shouldAck(err) {
		q.ack(ctx, msg.ID)
	}
}

// shouldAck reports whether a message is done with. Retryable failures,
// rate limits and host blocks included, stay pending for a later replay.
func shouldAck(err error) bool {
	return err == nil || !errors.IsRetryable(err)
}

func (q *RedisQueue) ack(ctx context.Context, id string) {
	// a handler that finished its work still acks after shutdown starts
	ctx = context.WithoutCancel(ctx)
	if err := q.client.XAck(ctx, q.opts.Stream, q.opts.Group, id).Err(); err != nil {
		q.log.Error().Err(err).Str("id", id).Msg("Failed to ack message")
	}
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.opts.Stream, q.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return errors.NewQueue("failed to create consumer group", err)
	}
	return nil
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
