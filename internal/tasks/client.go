package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisOpt converts a Redis URL into the asynq connection option.
func RedisOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// Client enqueues maintenance tasks.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient builds an enqueueing client on the given Redis connection.
func NewClient(opt asynq.RedisClientOpt, queue string) *Client {
	if queue == "" {
		queue = "default"
	}
	return &Client{client: asynq.NewClient(opt), queue: queue}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueSweepListings queues one sweep of expired listings.
func (c *Client) EnqueueSweepListings(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("tasks: client not configured")
	}
	_, err := c.client.EnqueueContext(ctx, NewSweepListingsTask(), asynq.Queue(c.queue))
	return err
}

// EnqueueRefreshSnapshots queues one savings snapshot refresh run.
func (c *Client) EnqueueRefreshSnapshots(ctx context.Context, limit int) error {
	if c == nil || c.client == nil {
		return errors.New("tasks: client not configured")
	}
	task, err := NewRefreshSnapshotsTask(RefreshSnapshotsPayload{Limit: limit})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

// RunPeriodic enqueues both maintenance tasks on the given interval until ctx
// is cancelled. One initial round fires immediately so a fresh deployment does
// not wait a full interval for its first sweep.
func (c *Client) RunPeriodic(ctx context.Context, interval time.Duration, snapshotBatch int, log zerolog.Logger) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	enqueue := func() {
		if err := c.EnqueueSweepListings(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("enqueue listings sweep failed")
		}
		if err := c.EnqueueRefreshSnapshots(ctx, snapshotBatch); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("enqueue snapshot refresh failed")
		}
	}

	enqueue()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}
