// Package scheduler periodically enqueues sync jobs for channels
// whose last sync has gone stale. The worker pool consumes the jobs
// through the same queue webhook-driven work arrives on.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/channel"
)

// configKeySyncInterval overrides the trigger's interval per channel.
// The value is a Go duration string in the channel config map.
const configKeySyncInterval = "sync_interval"

// Config holds sync trigger configuration
type Config struct {
	// CheckInterval is how often the trigger scans for due channels
	CheckInterval time.Duration
	// SyncInterval is the minimum gap between scheduled syncs for a
	// channel that carries no override
	SyncInterval time.Duration
}

// DefaultConfig returns default trigger configuration
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Minute,
		SyncInterval:  15 * time.Minute,
	}
}

// ChannelSource lists channels due for a scheduled sync
type ChannelSource interface {
	FindDueForSync(ctx context.Context, cutoff time.Time) ([]channel.Channel, error)
}

// SyncTrigger scans for stale channels and enqueues scheduled sync
// jobs. Scheduling is advisory; the orchestrator still enforces rate
// limits and channel state when the job runs.
type SyncTrigger struct {
	source ChannelSource
	queue  channel.Queue
	logger *zap.Logger
	cfg    Config

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// lastScheduled deduplicates scheduling between the enqueue and
	// the watermark advancing when the run completes
	scheduledMu   sync.Mutex
	lastScheduled map[uuid.UUID]time.Time
}

// NewSyncTrigger creates a new sync trigger
func NewSyncTrigger(source ChannelSource, queue channel.Queue, logger *zap.Logger, cfg Config) *SyncTrigger {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultConfig().CheckInterval
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultConfig().SyncInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncTrigger{
		source:        source,
		queue:         queue,
		logger:        logger,
		cfg:           cfg,
		lastScheduled: make(map[uuid.UUID]time.Time),
	}
}

// Start starts the trigger loop
func (t *SyncTrigger) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.run(ctx)

	t.logger.Info("sync trigger started",
		zap.Duration("check_interval", t.cfg.CheckInterval),
		zap.Duration("sync_interval", t.cfg.SyncInterval),
	)
}

// Stop stops the trigger loop, waiting for an in-flight scan
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *SyncTrigger) run(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.CheckInterval)
	defer ticker.Stop()

	// first scan runs immediately so a fresh deployment does not wait
	// a full interval
	t.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.scan(ctx)
		}
	}
}

// scan enqueues one scheduled sync job per due channel
func (t *SyncTrigger) scan(ctx context.Context) {
	now := time.Now()
	cutoff := now.Add(-t.cfg.SyncInterval)

	due, err := t.source.FindDueForSync(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Error("failed to list channels due for sync", zap.Error(err))
		}
		return
	}

	for i := range due {
		ch := &due[i]
		if !t.shouldSchedule(ch, now) {
			continue
		}

		_, err := t.queue.Enqueue(ctx, channel.TopicChannelSync, channel.SyncJob{
			ChannelID: ch.ID,
			Type:      "scheduled",
		}, channel.EnqueueOptions{})
		if err != nil {
			t.logger.Error("failed to enqueue scheduled sync",
				zap.String("channel_id", ch.ID.String()),
				zap.String("channel_type", string(ch.Type)),
				zap.Error(err),
			)
			continue
		}

		t.markScheduled(ch.ID, now)
		t.logger.Info("scheduled sync enqueued",
			zap.String("channel_id", ch.ID.String()),
			zap.String("channel_type", string(ch.Type)),
		)
	}
}

// shouldSchedule applies the per-channel interval. The source already
// filtered on the default interval; this guards override channels and
// jobs still sitting in the queue from a previous scan.
func (t *SyncTrigger) shouldSchedule(ch *channel.Channel, now time.Time) bool {
	interval := t.cfg.SyncInterval
	if raw := ch.ConfigString(configKeySyncInterval); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			interval = d
		}
	}

	if ch.LastSyncAt != nil && now.Sub(*ch.LastSyncAt) < interval {
		return false
	}

	t.scheduledMu.Lock()
	defer t.scheduledMu.Unlock()
	if last, ok := t.lastScheduled[ch.ID]; ok && now.Sub(last) < interval {
		return false
	}
	return true
}

func (t *SyncTrigger) markScheduled(id uuid.UUID, at time.Time) {
	t.scheduledMu.Lock()
	t.lastScheduled[id] = at
	t.scheduledMu.Unlock()
}
