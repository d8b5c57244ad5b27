package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/domain/shared"
)

// ResourceResolver is a per-resource override consulted before the
// strategy default. It returns handled=false to fall through.
type ResourceResolver func(local, remote *channel.Item, rctx channel.ResolutionContext) (channel.Resolution, bool)

// ConflictResolver decides what happens when both sides changed a
// record. The decision itself is pure and deterministic for identical
// (local, remote, strategy) inputs; every call appends one audit
// record before returning, regardless of the branch taken.
type ConflictResolver struct {
	conflicts channel.ConflictRecordRepository
	publisher shared.EventPublisher
	logger    *zap.Logger
	strategy  channel.Strategy
	overrides map[channel.ResourceType]ResourceResolver
}

// NewConflictResolver creates a resolver with the given deployment-wide
// strategy and the built-in per-resource overrides (conservative
// inventory quantities, order status priority).
func NewConflictResolver(
	strategy channel.Strategy,
	conflicts channel.ConflictRecordRepository,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) (*ConflictResolver, error) {
	if !strategy.IsValid() {
		return nil, fmt.Errorf("%w: strategy %q", shared.ErrInvalidInput, strategy)
	}
	r := &ConflictResolver{
		conflicts: conflicts,
		publisher: publisher,
		logger:    logger,
		strategy:  strategy,
		overrides: make(map[channel.ResourceType]ResourceResolver),
	}
	r.overrides[channel.ResourceInventory] = resolveInventory
	r.overrides[channel.ResourceOrders] = resolveOrderStatus
	return r, nil
}

// RegisterOverride replaces the per-resource resolver for a resource
func (r *ConflictResolver) RegisterOverride(resource channel.ResourceType, fn ResourceResolver) {
	r.overrides[resource] = fn
}

// Strategy returns the deployment-wide strategy
func (r *ConflictResolver) Strategy() channel.Strategy {
	return r.strategy
}

// Resolve maps (local, remote, context) to a resolution action. The
// audit record is written strictly before the result is returned so an
// aborted apply still leaves a trail.
func (r *ConflictResolver) Resolve(ctx context.Context, local, remote *channel.Item, rctx channel.ResolutionContext) (channel.Resolution, error) {
	if rctx.Strategy == "" {
		rctx.Strategy = r.strategy
	}

	res := r.decide(local, remote, rctx)

	rec := channel.NewConflictRecord(rctx, local, remote, res)
	if err := r.conflicts.Append(ctx, rec); err != nil {
		return channel.Resolution{}, fmt.Errorf("conflict audit write failed: %w", err)
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, channel.NewConflictDetectedEvent(rec)); err != nil {
			r.logger.Warn("conflict event publish failed", zap.Error(err))
		}
	}

	r.logger.Debug("conflict resolved",
		zap.String("resource", string(rctx.Resource)),
		zap.String("strategy", string(rctx.Strategy)),
		zap.String("action", string(res.Action)),
		zap.String("reason", res.Reason),
	)
	return res, nil
}

// decide is the pure decision function: per-resource override first,
// strategy default second.
func (r *ConflictResolver) decide(local, remote *channel.Item, rctx channel.ResolutionContext) channel.Resolution {
	if override, ok := r.overrides[rctx.Resource]; ok {
		if res, handled := override(local, remote, rctx); handled {
			return res
		}
	}
	return resolveByStrategy(local, remote, rctx.Strategy)
}

// resolveByStrategy applies the deployment-wide default resolver
func resolveByStrategy(local, remote *channel.Item, strategy channel.Strategy) channel.Resolution {
	switch strategy {
	case channel.StrategyLocalWins:
		return channel.Resolution{Action: channel.ActionSkip, Reason: "local-wins strategy keeps local record"}

	case channel.StrategyRemoteWins:
		return channel.Resolution{Action: channel.ActionUpdate, Data: remote, Reason: "remote-wins strategy applies remote record"}

	case channel.StrategyManual:
		return channel.Resolution{Action: channel.ActionQueue, Reason: "manual strategy queues conflict for review"}

	case channel.StrategyMerge:
		merged := mergeItems(local, remote)
		return channel.Resolution{Action: channel.ActionUpdate, Data: merged, Reason: "merge strategy combined both records"}

	default: // latest-wins, and conservative for non-inventory resources
		return resolveLatestWins(local, remote)
	}
}

// resolveLatestWins compares updated_at timestamps; only a strictly
// newer remote wins.
func resolveLatestWins(local, remote *channel.Item) channel.Resolution {
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return channel.Resolution{Action: channel.ActionUpdate, Data: remote, Reason: "remote record is newer"}
	}
	return channel.Resolution{Action: channel.ActionSkip, Reason: "local record is newer or same age"}
}

// ---------------------------------------------------------------------------
// Built-in per-resource overrides
// ---------------------------------------------------------------------------

// resolveInventory applies the conservative quantity rule: under the
// conservative strategy the resolved quantity is the minimum of both
// sides, so a stale higher count can never cause overselling.
func resolveInventory(local, remote *channel.Item, rctx channel.ResolutionContext) (channel.Resolution, bool) {
	if rctx.Strategy != channel.StrategyConservative {
		return channel.Resolution{}, false
	}

	resolved := *remote
	if local.Quantity.LessThan(remote.Quantity) {
		resolved.Quantity = local.Quantity
	}
	if resolved.Data != nil {
		data := make(map[string]any, len(resolved.Data))
		for k, v := range resolved.Data {
			data[k] = v
		}
		data["quantity"] = resolved.Quantity
		resolved.Data = data
	}
	return channel.Resolution{
		Action: channel.ActionUpdate,
		Data:   &resolved,
		Reason: fmt.Sprintf("conservative inventory resolution kept min quantity %s", resolved.Quantity),
	}, true
}

// orderStatusPriority ranks order statuses; a lower number is a higher
// priority and must never be overwritten by a lower-priority remote.
var orderStatusPriority = map[string]int{
	"cancelled":  0,
	"refunded":   1,
	"completed":  2,
	"shipped":    3,
	"processing": 4,
	"pending":    5,
}

// resolveOrderStatus skips when the local order already reached a
// higher-priority status than the remote; otherwise it falls through
// to the strategy default.
func resolveOrderStatus(local, remote *channel.Item, _ channel.ResolutionContext) (channel.Resolution, bool) {
	localPrio, lok := orderStatusPriority[local.Status]
	remotePrio, rok := orderStatusPriority[remote.Status]
	if lok && rok && localPrio < remotePrio {
		return channel.Resolution{
			Action: channel.ActionSkip,
			Reason: fmt.Sprintf("local status %q outranks remote status %q", local.Status, remote.Status),
		}, true
	}
	return channel.Resolution{}, false
}

// ---------------------------------------------------------------------------
// Merge
// ---------------------------------------------------------------------------

// mergeKeys are the natural ids used to merge array elements by key
// instead of concatenating or replacing wholesale.
var mergeKeys = []string{"sku", "url", "id"}

// mergeItems deep-merges the remote payload over the local one. Typed
// fields take the remote value when set, the local otherwise.
func mergeItems(local, remote *channel.Item) *channel.Item {
	merged := *remote
	if merged.Name == "" {
		merged.Name = local.Name
	}
	if merged.SKU == "" {
		merged.SKU = local.SKU
	}
	if merged.Status == "" {
		merged.Status = local.Status
	}
	if merged.LocalID == uuid.Nil {
		merged.LocalID = local.LocalID
	}
	merged.Data = mergeMaps(local.Data, remote.Data)
	return &merged
}

// mergeMaps merges remote over local: remote non-nil values override,
// nested objects merge recursively, keyed arrays merge element-wise.
func mergeMaps(local, remote map[string]any) map[string]any {
	out := make(map[string]any, len(local)+len(remote))
	for k, v := range local {
		out[k] = v
	}
	for k, rv := range remote {
		if rv == nil {
			continue
		}
		lv, exists := out[k]
		if !exists {
			out[k] = rv
			continue
		}
		switch rtyped := rv.(type) {
		case map[string]any:
			if ltyped, ok := lv.(map[string]any); ok {
				out[k] = mergeMaps(ltyped, rtyped)
				continue
			}
			out[k] = rv
		case []any:
			if ltyped, ok := lv.([]any); ok {
				out[k] = mergeSlices(ltyped, rtyped)
				continue
			}
			out[k] = rv
		default:
			out[k] = rv
		}
	}
	return out
}

// mergeSlices merges arrays of objects by their natural key when one
// exists; arrays without a shared key are replaced by the remote side.
func mergeSlices(local, remote []any) []any {
	key := sliceKey(remote)
	if key == "" {
		key = sliceKey(local)
	}
	if key == "" {
		return remote
	}

	out := make([]any, 0, len(local)+len(remote))
	index := make(map[any]int)
	for _, lv := range local {
		out = append(out, lv)
		if m, ok := lv.(map[string]any); ok {
			if id, has := m[key]; has {
				index[id] = len(out) - 1
			}
		}
	}
	for _, rv := range remote {
		m, ok := rv.(map[string]any)
		if !ok {
			out = append(out, rv)
			continue
		}
		id, has := m[key]
		if !has {
			out = append(out, rv)
			continue
		}
		if pos, seen := index[id]; seen {
			if lm, ok := out[pos].(map[string]any); ok {
				out[pos] = mergeMaps(lm, m)
			} else {
				out[pos] = rv
			}
			continue
		}
		out = append(out, rv)
		index[id] = len(out) - 1
	}
	return out
}

// sliceKey finds the first natural id field present on every object
// element of the slice.
func sliceKey(items []any) string {
	if len(items) == 0 {
		return ""
	}
	for _, key := range mergeKeys {
		found := true
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				return ""
			}
			if _, has := m[key]; !has {
				found = false
				break
			}
		}
		if found {
			return key
		}
	}
	return ""
}
