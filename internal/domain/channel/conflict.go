package channel

import (
	"time"

	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Strategy
// ---------------------------------------------------------------------------

// Strategy is the deployment-wide conflict resolution policy
type Strategy string

const (
	// StrategyLatestWins compares updated_at timestamps; the newer side wins
	StrategyLatestWins Strategy = "latest-wins"
	// StrategyLocalWins always keeps the local record
	StrategyLocalWins Strategy = "local-wins"
	// StrategyRemoteWins always applies the remote record
	StrategyRemoteWins Strategy = "remote-wins"
	// StrategyManual defers every conflict for human review
	StrategyManual Strategy = "manual"
	// StrategyMerge deep-merges the two payloads field by field
	StrategyMerge Strategy = "merge"
	// StrategyConservative resolves inventory to the lower quantity to
	// avoid overselling; other resources fall back to latest-wins
	StrategyConservative Strategy = "conservative"
)

// IsValid returns true if the strategy is known
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyLatestWins, StrategyLocalWins, StrategyRemoteWins,
		StrategyManual, StrategyMerge, StrategyConservative:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// ResolutionAction is the outcome kind of one conflict decision
type ResolutionAction string

const (
	// ActionUpdate applies the resolved data to the local record
	ActionUpdate ResolutionAction = "update"
	// ActionSkip leaves the local record unchanged
	ActionSkip ResolutionAction = "skip"
	// ActionQueue defers the conflict for manual review; no mutation
	ActionQueue ResolutionAction = "queue"
)

// Resolution is the decision a resolver returns for one conflict
type Resolution struct {
	Action ResolutionAction
	// Data carries the item to apply when Action is ActionUpdate
	Data   *Item
	Reason string
}

// ResolutionContext carries the surrounding sync context into a resolver
type ResolutionContext struct {
	TenantID uuid.UUID
	Channel  *Channel
	Resource ResourceType
	Strategy Strategy
}

// ---------------------------------------------------------------------------
// ConflictRecord
// ---------------------------------------------------------------------------

// ConflictRecord is the immutable audit row written for every conflict
// resolution decision, strictly before the resolved mutation is
// applied, so an aborted apply still leaves a trail.
type ConflictRecord struct {
	shared.BaseEntity
	TenantID  uuid.UUID
	ChannelID uuid.UUID
	Resource  ResourceType
	LocalID   uuid.UUID
	RemoteID  string
	Strategy  Strategy
	Action    ResolutionAction
	Reason    string
	// Raw payloads for after-the-fact review
	LocalData    map[string]any
	RemoteData   map[string]any
	ResolvedData map[string]any
	ResolvedAt   time.Time
}

// NewConflictRecord builds the audit row for one resolution
func NewConflictRecord(ctx ResolutionContext, local, remote *Item, res Resolution) *ConflictRecord {
	rec := &ConflictRecord{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   ctx.TenantID,
		Resource:   ctx.Resource,
		Strategy:   ctx.Strategy,
		Action:     res.Action,
		Reason:     res.Reason,
		ResolvedAt: time.Now(),
	}
	if ctx.Channel != nil {
		rec.ChannelID = ctx.Channel.ID
	}
	if local != nil {
		rec.LocalID = local.LocalID
		rec.LocalData = local.Data
	}
	if remote != nil {
		rec.RemoteID = remote.RemoteID
		rec.RemoteData = remote.Data
	}
	if res.Data != nil {
		rec.ResolvedData = res.Data.Data
	}
	return rec
}
