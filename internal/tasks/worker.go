package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/lumberlens/backend-lumber/internal/lock"
	"github.com/lumberlens/backend-lumber/internal/obs"
)

// ListingSweeper deletes listings whose expiry has passed.
type ListingSweeper interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// StaleOrderSource lists build orders whose savings snapshot predates a cutoff.
type StaleOrderSource interface {
	StaleRepricedIDs(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

// SnapshotRefresher reprices a single build order and persists the result.
type SnapshotRefresher interface {
	RefreshSnapshot(ctx context.Context, orderID uuid.UUID) error
}

// WorkerConfig wires the background job server.
type WorkerConfig struct {
	RedisOpt    asynq.RedisClientOpt
	Listings    ListingSweeper
	Orders      StaleOrderSource
	Reprices    SnapshotRefresher
	Locker      lock.Locker
	Logger      zerolog.Logger
	Concurrency int
	Queue       string
	// SnapshotMaxAge is how old a savings snapshot may get before a refresh.
	SnapshotMaxAge time.Duration
	// SnapshotBatch caps the number of orders repriced per refresh run.
	SnapshotBatch int
}

// Worker consumes the periodic maintenance tasks.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	listings ListingSweeper
	orders   StaleOrderSource
	reprices SnapshotRefresher
	locker   lock.Locker
	log      zerolog.Logger
	maxAge   time.Duration
	batch    int
	now      func() time.Time
}

// NewWorker validates the config and builds a Worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Listings == nil {
		return nil, errors.New("tasks: listing sweeper is required")
	}
	if cfg.Orders == nil {
		return nil, errors.New("tasks: stale order source is required")
	}
	if cfg.Reprices == nil {
		return nil, errors.New("tasks: reprice service is required")
	}

	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 5
	}
	maxAge := cfg.SnapshotMaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	batch := cfg.SnapshotBatch
	if batch <= 0 {
		batch = 100
	}

	server := asynq.NewServer(cfg.RedisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:   server,
		mux:      asynq.NewServeMux(),
		listings: cfg.Listings,
		orders:   cfg.Orders,
		reprices: cfg.Reprices,
		locker:   cfg.Locker,
		log:      cfg.Logger,
		maxAge:   maxAge,
		batch:    batch,
		now:      time.Now,
	}

	w.mux.HandleFunc(TaskSweepListings, w.handleSweepListings)
	w.mux.HandleFunc(TaskRefreshSnapshots, w.handleRefreshSnapshots)

	return w, nil
}

// Run serves tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error().Err(err).Msg("task worker stopped")
	}
}

// handleSweepListings removes expired listings under a cluster-wide lock so
// concurrent workers do not double count the sweep metric.
func (w *Worker) handleSweepListings(ctx context.Context, _ *asynq.Task) error {
	return w.locker.WithLock(ctx, "lock:listings:sweep", time.Minute, func(ctx context.Context) error {
		removed, err := w.listings.DeleteExpired(ctx, w.now())
		if err != nil {
			return err
		}
		if removed > 0 {
			obs.ListingsSweptTotal.Add(float64(removed))
			w.log.Info().Int64("removed", removed).Msg("swept expired listings")
		}
		return nil
	})
}

// handleRefreshSnapshots reprices orders with stale savings snapshots. A
// failed order is logged and skipped so one bad row cannot stall the batch.
func (w *Worker) handleRefreshSnapshots(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRefreshSnapshotsPayload(task)
	if err != nil {
		return err
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = w.batch
	}

	cutoff := w.now().Add(-w.maxAge)
	ids, err := w.orders.StaleRepricedIDs(ctx, cutoff, limit)
	if err != nil {
		return err
	}

	var failed int
	start := w.now()
	for _, id := range ids {
		if err := w.reprices.RefreshSnapshot(ctx, id); err != nil {
			failed++
			obs.RepriceRunsTotal.WithLabelValues("worker", "error").Inc()
			w.log.Warn().Err(err).Str("build_order_id", id.String()).Msg("snapshot refresh failed")
			continue
		}
		obs.RepriceRunsTotal.WithLabelValues("worker", "ok").Inc()
	}

	if len(ids) > 0 {
		w.log.Info().
			Int("refreshed", len(ids)-failed).
			Int("failed", failed).
			Dur("elapsed", time.Since(start)).
			Msg("refreshed stale savings snapshots")
	}
	return nil
}
