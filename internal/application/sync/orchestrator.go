package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/domain/shared"
)

// Config tunes orchestrated sync executions
type Config struct {
	// PageSize is the number of items requested per inbound page
	PageSize int
	// ConflictSkew is the timestamp divergence beyond which a matched
	// item counts as a conflict instead of a plain update
	ConflictSkew time.Duration
}

// DefaultConfig returns the standard orchestrator tuning
func DefaultConfig() Config {
	return Config{
		PageSize:     50,
		ConflictSkew: time.Second,
	}
}

// Orchestrator drives one sync execution for a channel: it iterates
// the configured resources, runs the inbound and/or outbound passes,
// applies rate limiting and conflict resolution, and persists per-item
// sync state so re-running the same parameters never duplicates
// remote creates.
//
// Items within one execution are processed sequentially to preserve
// ordering; independent executions for different channels may run
// concurrently, protected only by the rate limiter and the sync-state
// uniqueness constraints.
type Orchestrator struct {
	registry    *AdapterRegistry
	resolver    *ConflictResolver
	limiter     channel.RateLimiter
	store       channel.LocalStore
	states      channel.SyncStateRepository
	runs        channel.SyncRunRepository
	channels    channel.ChannelRepository
	transformer channel.Transformer
	publisher   shared.EventPublisher
	logger      *zap.Logger
	tracer      trace.Tracer
	cfg         Config
}

// NewOrchestrator wires a sync orchestrator from its collaborators
func NewOrchestrator(
	registry *AdapterRegistry,
	resolver *ConflictResolver,
	limiter channel.RateLimiter,
	store channel.LocalStore,
	states channel.SyncStateRepository,
	runs channel.SyncRunRepository,
	channels channel.ChannelRepository,
	transformer channel.Transformer,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.ConflictSkew <= 0 {
		cfg.ConflictSkew = DefaultConfig().ConflictSkew
	}
	if transformer == nil {
		transformer = channel.IdentityTransformer()
	}
	return &Orchestrator{
		registry:    registry,
		resolver:    resolver,
		limiter:     limiter,
		store:       store,
		states:      states,
		runs:        runs,
		channels:    channels,
		transformer: transformer,
		publisher:   publisher,
		logger:      logger,
		tracer:      otel.Tracer("channelsync/sync"),
		cfg:         cfg,
	}
}

// passResult accumulates one pass's outcomes
type passResult struct {
	stats  channel.SyncStats
	errors []channel.ItemError
}

func (p *passResult) recordError(resource channel.ResourceType, itemID string, err error) {
	p.stats.Errors++
	p.errors = append(p.errors, channel.ItemError{
		Resource: resource,
		ItemID:   itemID,
		Message:  err.Error(),
	})
}

// ExecuteSync runs one sync execution for the channel. The returned
// SyncRun is always persisted in a terminal state; the error is
// non-nil only when setup failed and the whole execution aborted.
func (o *Orchestrator) ExecuteSync(ctx context.Context, ch *channel.Channel, opts channel.SyncOptions) (*channel.SyncRun, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !ch.Active {
		return nil, channel.ErrChannelInactive
	}

	ctx, span := o.tracer.Start(ctx, "sync.execute",
		trace.WithAttributes(
			attribute.String("channel.id", ch.ID.String()),
			attribute.String("channel.type", string(ch.Type)),
			attribute.String("sync.direction", string(opts.Direction)),
			attribute.Bool("sync.full", opts.FullSync),
		))
	defer span.End()

	run := channel.NewSyncRun(ch.TenantID, ch.ID, opts.RunType(), opts.Direction)
	if err := o.runs.Save(ctx, run); err != nil {
		span.SetStatus(codes.Error, "sync log create failed")
		return nil, fmt.Errorf("create sync run: %w", err)
	}
	startedAt := run.StartedAt

	total := &passResult{}
	err := o.execute(ctx, ch, opts, total)
	if err != nil {
		run.Fail(total.stats, total.errors, err)
		if saveErr := o.runs.Save(ctx, run); saveErr != nil {
			o.logger.Error("failed to finalize sync run", zap.Error(saveErr))
		}
		o.publish(ctx, channel.NewSyncFailedEvent(run))
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		o.logger.Error("sync execution failed",
			zap.String("channel_id", ch.ID.String()),
			zap.Error(err),
		)
		return run, err
	}

	run.Complete(total.stats, total.errors)
	if saveErr := o.runs.Save(ctx, run); saveErr != nil {
		o.logger.Error("failed to finalize sync run", zap.Error(saveErr))
	}

	// Advance the watermark to the run start so changes made while the
	// run was executing are picked up next time.
	ch.RecordSync(startedAt)
	if saveErr := o.channels.Save(ctx, ch); saveErr != nil {
		o.logger.Error("failed to advance channel watermark", zap.Error(saveErr))
	}

	o.publish(ctx, channel.NewSyncCompletedEvent(run))
	o.logger.Info("sync execution completed",
		zap.String("channel_id", ch.ID.String()),
		zap.Int("processed", run.Stats.Processed),
		zap.Int("created", run.Stats.Created),
		zap.Int("updated", run.Stats.Updated),
		zap.Int("conflicts", run.Stats.Conflicts),
		zap.Int("errors", run.Stats.Errors),
	)
	return run, nil
}

// execute runs the per-resource passes; an error return aborts the
// whole execution (setup failure semantics).
func (o *Orchestrator) execute(ctx context.Context, ch *channel.Channel, opts channel.SyncOptions, total *passResult) error {
	adapter, err := o.registry.AdapterFor(ch)
	if err != nil {
		return err
	}
	if err := adapter.Connect(ctx); err != nil {
		return fmt.Errorf("adapter connect: %w", err)
	}
	defer func() {
		if err := adapter.Disconnect(ctx); err != nil {
			o.logger.Warn("adapter disconnect failed", zap.Error(err))
		}
	}()

	for _, resource := range opts.Resources {
		if opts.Direction.Inbound() {
			if err := o.inboundPass(ctx, ch, adapter, resource, opts.FullSync, total); err != nil {
				return err
			}
		}
		if opts.Direction.Outbound() {
			if err := o.outboundPass(ctx, ch, adapter, resource, opts.FullSync, total); err != nil {
				return err
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Inbound
// ---------------------------------------------------------------------------

// inboundPass paginates remote items into the local store. Per-item
// failures are recorded and the pass continues; only a first-page
// fetch failure aborts the execution.
func (o *Orchestrator) inboundPass(ctx context.Context, ch *channel.Channel, adapter channel.Adapter, resource channel.ResourceType, fullSync bool, total *passResult) error {
	var since *time.Time
	if !fullSync {
		since = ch.LastSyncAt
	}

	page := 1
	for {
		if err := o.limiter.CheckLimit(ctx, ch.ID, resource.ReadOperation()); err != nil {
			// Surfaced to the pass, not propagated: the rest of the
			// window's budget is gone, so the pass stops here.
			total.recordError(resource, fmt.Sprintf("page-%d", page), err)
			return nil
		}

		items, err := adapter.FetchResources(ctx, resource, channel.FetchOptions{
			Page:  page,
			Limit: o.cfg.PageSize,
			Since: since,
		})
		if err != nil {
			if page == 1 {
				return fmt.Errorf("initial fetch of %s: %w", resource, err)
			}
			total.recordError(resource, fmt.Sprintf("page-%d", page), err)
			return nil
		}

		for i := range items {
			if err := o.processInbound(ctx, ch, resource, &items[i], total); err != nil {
				total.recordError(resource, items[i].RemoteID, err)
			}
			total.stats.Processed++
		}

		if len(items) < o.cfg.PageSize {
			return nil
		}
		page++
	}
}

// processInbound applies one remote item to the local store
func (o *Orchestrator) processInbound(ctx context.Context, ch *channel.Channel, resource channel.ResourceType, raw *channel.Item, total *passResult) error {
	remote, err := o.transformer.Transform(*raw, channel.TransformInbound)
	if err != nil {
		return fmt.Errorf("inbound transform: %w", err)
	}
	remote.Resource = resource

	local, state, err := o.matchLocal(ctx, ch, resource, &remote)
	if err != nil {
		return err
	}

	version := remoteVersion(&remote)

	if local == nil {
		created, err := o.store.Create(ctx, ch.TenantID, &remote)
		if err != nil {
			return fmt.Errorf("create local %s: %w", resource, err)
		}
		total.stats.Created++
		st := channel.NewSyncState(ch.TenantID, ch.ID, resource, created.LocalID, remote.RemoteID, version)
		return o.states.Upsert(ctx, st)
	}

	skew := local.UpdatedAt.Sub(remote.UpdatedAt)
	if skew < 0 {
		skew = -skew
	}

	switch {
	case skew > o.cfg.ConflictSkew:
		res, err := o.resolver.Resolve(ctx, local, &remote, channel.ResolutionContext{
			TenantID: ch.TenantID,
			Channel:  ch,
			Resource: resource,
			Strategy: o.resolver.Strategy(),
		})
		if err != nil {
			return err
		}
		switch res.Action {
		case channel.ActionUpdate:
			if _, err := o.store.Update(ctx, ch.TenantID, local.LocalID, res.Data); err != nil {
				return fmt.Errorf("apply resolved %s: %w", resource, err)
			}
			total.stats.Updated++
		case channel.ActionSkip, channel.ActionQueue:
			// Queued conflicts are deferred for manual review; neither
			// branch mutates the local record.
			total.stats.Conflicts++
		}

	case local.FieldsDiffer(&remote):
		// No timestamp conflict, just drift: apply directly without
		// involving the resolver.
		if _, err := o.store.Update(ctx, ch.TenantID, local.LocalID, &remote); err != nil {
			return fmt.Errorf("update local %s: %w", resource, err)
		}
		total.stats.Updated++
	}

	// The mapping advances on every branch, conflict or not, so a
	// resumed run can tell this item was already seen.
	if state == nil {
		state = channel.NewSyncState(ch.TenantID, ch.ID, resource, local.LocalID, remote.RemoteID, version)
	} else {
		state.RecordSync(version)
	}
	return o.states.Upsert(ctx, state)
}

// matchLocal locates the local counterpart of a remote item: sync
// state mapping first, natural key second, otherwise new.
func (o *Orchestrator) matchLocal(ctx context.Context, ch *channel.Channel, resource channel.ResourceType, remote *channel.Item) (*channel.Item, *channel.SyncState, error) {
	state, err := o.states.FindByRemoteID(ctx, ch.ID, resource, remote.RemoteID)
	switch {
	case err == nil:
		local, err := o.store.FindByID(ctx, ch.TenantID, resource, state.LocalID)
		if err != nil {
			return nil, nil, fmt.Errorf("mapped local record missing: %w", err)
		}
		return local, state, nil
	case !errors.Is(err, channel.ErrSyncStateNotFound):
		return nil, nil, err
	}

	key := remote.NaturalKey()
	if key == "" {
		return nil, nil, nil
	}
	local, err := o.store.FindByNaturalKey(ctx, ch.TenantID, resource, key)
	switch {
	case err == nil:
		return local, nil, nil
	case errors.Is(err, channel.ErrLocalItemNotFound):
		return nil, nil, nil
	default:
		return nil, nil, err
	}
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

// outboundPass pushes locally modified items to the channel. Per-item
// failures are recorded and the pass continues.
func (o *Orchestrator) outboundPass(ctx context.Context, ch *channel.Channel, adapter channel.Adapter, resource channel.ResourceType, fullSync bool, total *passResult) error {
	var since *time.Time
	if !fullSync {
		since = ch.LastSyncAt
	}

	items, err := o.store.ModifiedSince(ctx, ch.TenantID, ch.ID, resource, since)
	if err != nil {
		return fmt.Errorf("load modified %s: %w", resource, err)
	}

	for i := range items {
		if err := o.limiter.CheckLimit(ctx, ch.ID, resource.WriteOperation()); err != nil {
			// The window's write budget is exhausted; remaining items
			// would fail the same way, so stop the pass.
			total.recordError(resource, items[i].LocalID.String(), err)
			return nil
		}
		if err := o.pushOutbound(ctx, ch, adapter, resource, &items[i], total); err != nil {
			total.recordError(resource, items[i].LocalID.String(), err)
		}
		total.stats.Processed++
	}
	return nil
}

// pushOutbound creates or updates one item on the channel
func (o *Orchestrator) pushOutbound(ctx context.Context, ch *channel.Channel, adapter channel.Adapter, resource channel.ResourceType, local *channel.Item, total *passResult) error {
	outbound, err := o.transformer.Transform(*local, channel.TransformOutbound)
	if err != nil {
		return fmt.Errorf("outbound transform: %w", err)
	}

	state, err := o.states.FindByLocalID(ctx, ch.ID, resource, local.LocalID)
	switch {
	case errors.Is(err, channel.ErrSyncStateNotFound):
		created, err := adapter.CreateResource(ctx, resource, outbound)
		if err != nil {
			return err
		}
		total.stats.Created++
		st := channel.NewSyncState(ch.TenantID, ch.ID, resource, local.LocalID, created.RemoteID, remoteVersion(created))
		return o.states.Upsert(ctx, st)
	case err != nil:
		return err
	}

	updated, err := adapter.UpdateResource(ctx, resource, state.RemoteID, outbound)
	if err != nil {
		return err
	}
	total.stats.Updated++
	state.RecordSync(remoteVersion(updated))
	return o.states.Upsert(ctx, state)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// remoteVersion derives the version token stored on the sync state:
// an explicit remote version when the payload carries one, otherwise
// the remote modification timestamp.
func remoteVersion(item *channel.Item) string {
	if item.Data != nil {
		if v, ok := item.Data["version"].(string); ok && v != "" {
			return v
		}
	}
	return item.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

func (o *Orchestrator) publish(ctx context.Context, event shared.DomainEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("event publish failed",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
