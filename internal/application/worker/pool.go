// Package worker runs the background pool consuming queued sync work.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/application/webhook"
	"github.com/channelsync/backend/internal/domain/channel"
)

// Config tunes the worker pool
type Config struct {
	// Workers is the number of concurrent consumers
	Workers int
	// PollInterval is how long an idle worker sleeps between polls
	PollInterval time.Duration
}

// DefaultConfig returns the standard pool configuration
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		PollInterval: time.Second,
	}
}

// Dequeuer pops ready jobs from a topic; nil means no job is ready
type Dequeuer interface {
	Dequeue(ctx context.Context, topic string) (*channel.Job, error)
}

// SyncExecutor runs orchestrated sync executions
type SyncExecutor interface {
	ExecuteSync(ctx context.Context, ch *channel.Channel, opts channel.SyncOptions) (*channel.SyncRun, error)
}

// WebhookRetrier re-runs failed webhook deliveries
type WebhookRetrier interface {
	Retry(ctx context.Context, deliveryID uuid.UUID) (*channel.WebhookDelivery, error)
}

// Pool consumes the channel-sync and webhook-retry topics. Sync jobs
// produced by webhook processors are turned into inbound incremental
// sync executions; retry jobs re-run their delivery once its backoff
// delay has elapsed.
type Pool struct {
	queue    Dequeuer
	channels channel.ChannelRepository
	executor SyncExecutor
	retrier  WebhookRetrier
	logger   *zap.Logger
	cfg      Config

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool
func NewPool(
	queue Dequeuer,
	channels channel.ChannelRepository,
	executor SyncExecutor,
	retrier WebhookRetrier,
	logger *zap.Logger,
	cfg Config,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:    queue,
		channels: channels,
		executor: executor,
		retrier:  retrier,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start launches the workers. It returns immediately; workers run
// until Stop is called or the given context is canceled.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.logger.Info("sync worker pool started",
		zap.Int("workers", p.cfg.Workers),
		zap.Duration("poll_interval", p.cfg.PollInterval),
	)
}

// Stop signals the workers and waits for them to drain, or until the
// given context expires.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("sync worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()

	for {
		worked := p.poll(ctx)
		if ctx.Err() != nil {
			return
		}
		if worked {
			continue
		}

		timer.Reset(p.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// poll takes at most one job; retries drain ahead of fresh sync work
// because they carry an explicit backoff deadline already.
func (p *Pool) poll(ctx context.Context) bool {
	if job := p.dequeue(ctx, channel.TopicWebhookRetry); job != nil {
		p.handleRetry(ctx, job)
		return true
	}
	if job := p.dequeue(ctx, channel.TopicChannelSync); job != nil {
		p.handleSync(ctx, job)
		return true
	}
	return false
}

func (p *Pool) dequeue(ctx context.Context, topic string) *channel.Job {
	job, err := p.queue.Dequeue(ctx, topic)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("queue dequeue failed",
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
		return nil
	}
	return job
}

func (p *Pool) handleSync(ctx context.Context, job *channel.Job) {
	var sj channel.SyncJob
	if err := json.Unmarshal(job.Payload, &sj); err != nil {
		p.logger.Error("discarding malformed sync job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}

	ch, err := p.channels.FindByID(ctx, sj.ChannelID)
	if err != nil {
		p.logger.Error("sync job references unknown channel",
			zap.String("channel_id", sj.ChannelID.String()),
			zap.Error(err),
		)
		return
	}

	// Webhook-driven jobs pull the remote change in; scheduled jobs
	// run the full incremental pass in both directions.
	opts := channel.SyncOptions{
		Resources: []channel.ResourceType{sj.Resource},
		Direction: channel.DirectionInbound,
	}
	if sj.Type == "scheduled" {
		opts.Resources = []channel.ResourceType{
			channel.ResourceProducts,
			channel.ResourceInventory,
			channel.ResourceOrders,
		}
		opts.Direction = channel.DirectionBoth
	}

	run, err := p.executor.ExecuteSync(ctx, ch, opts)
	if err != nil {
		fields := []zap.Field{
			zap.String("channel_id", ch.ID.String()),
			zap.String("resource", string(sj.Resource)),
			zap.Error(err),
		}
		if run != nil {
			fields = append(fields, zap.String("run_id", run.ID.String()))
		}
		p.logger.Error("queued sync execution failed", fields...)
	}
}

func (p *Pool) handleRetry(ctx context.Context, job *channel.Job) {
	var rj webhook.RetryJob
	if err := json.Unmarshal(job.Payload, &rj); err != nil {
		p.logger.Error("discarding malformed retry job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}

	if _, err := p.retrier.Retry(ctx, rj.DeliveryID); err != nil {
		// A delivery completed by a manual retry is no longer
		// retryable; that is not a failure of this job.
		if errors.Is(err, channel.ErrDeliveryNotRetryable) {
			p.logger.Debug("skipping retry for settled delivery",
				zap.String("delivery_id", rj.DeliveryID.String()),
			)
			return
		}
		p.logger.Warn("webhook retry attempt failed",
			zap.String("delivery_id", rj.DeliveryID.String()),
			zap.Error(err),
		)
	}
}
