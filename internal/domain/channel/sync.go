package channel

import (
	"time"

	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncDirection
// ---------------------------------------------------------------------------

// SyncDirection selects which passes a sync execution runs
type SyncDirection string

const (
	// DirectionInbound pulls remote changes into the local store
	DirectionInbound SyncDirection = "inbound"
	// DirectionOutbound pushes local changes to the channel
	DirectionOutbound SyncDirection = "outbound"
	// DirectionBoth runs the inbound pass then the outbound pass
	DirectionBoth SyncDirection = "both"
)

// IsValid returns true if the direction is known
func (d SyncDirection) IsValid() bool {
	switch d {
	case DirectionInbound, DirectionOutbound, DirectionBoth:
		return true
	default:
		return false
	}
}

// Inbound reports whether the inbound pass should run
func (d SyncDirection) Inbound() bool {
	return d == DirectionInbound || d == DirectionBoth
}

// Outbound reports whether the outbound pass should run
func (d SyncDirection) Outbound() bool {
	return d == DirectionOutbound || d == DirectionBoth
}

// ---------------------------------------------------------------------------
// SyncState
// ---------------------------------------------------------------------------

// SyncState is the durable mapping between a local record and its
// counterpart on one channel. It is the idempotency anchor for sync:
// at most one mapping exists per (channel, resource, local_id) and per
// (channel, resource, remote_id), enforced by unique indexes and
// repository upsert semantics. Mappings are never deleted except by
// manual channel removal.
type SyncState struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	ChannelID     uuid.UUID
	Resource      ResourceType
	LocalID       uuid.UUID
	RemoteID      string
	RemoteVersion string
	LastSyncedAt  time.Time
}

// NewSyncState creates a mapping for a matched local/remote pair
func NewSyncState(tenantID, channelID uuid.UUID, resource ResourceType, localID uuid.UUID, remoteID, remoteVersion string) *SyncState {
	return &SyncState{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		ChannelID:     channelID,
		Resource:      resource,
		LocalID:       localID,
		RemoteID:      remoteID,
		RemoteVersion: remoteVersion,
		LastSyncedAt:  time.Now(),
	}
}

// RecordSync updates the mapping after an item was processed
func (s *SyncState) RecordSync(remoteVersion string) {
	s.RemoteVersion = remoteVersion
	s.LastSyncedAt = time.Now()
	s.Touch()
}

// ---------------------------------------------------------------------------
// SyncRun
// ---------------------------------------------------------------------------

// SyncRunType distinguishes full from incremental executions
type SyncRunType string

const (
	// SyncRunFull re-reads everything regardless of watermarks
	SyncRunFull SyncRunType = "full"
	// SyncRunIncremental only covers records modified since the last sync
	SyncRunIncremental SyncRunType = "incremental"
)

// SyncRunStatus is the lifecycle state of one orchestrator execution
type SyncRunStatus string

const (
	// SyncRunRunning marks an execution in progress
	SyncRunRunning SyncRunStatus = "running"
	// SyncRunCompleted is terminal success
	SyncRunCompleted SyncRunStatus = "completed"
	// SyncRunFailed is terminal failure
	SyncRunFailed SyncRunStatus = "failed"
)

// SyncStats aggregates per-item outcomes across the passes of one run
type SyncStats struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

// Add accumulates another stats block into this one
func (s *SyncStats) Add(other SyncStats) {
	s.Processed += other.Processed
	s.Created += other.Created
	s.Updated += other.Updated
	s.Deleted += other.Deleted
	s.Conflicts += other.Conflicts
	s.Errors += other.Errors
}

// ItemError records one per-item failure without aborting its pass
type ItemError struct {
	Resource ResourceType `json:"resource"`
	ItemID   string       `json:"item_id"`
	Message  string       `json:"message"`
}

// SyncRun is one row per orchestrator execution, created at start and
// finalized exactly once at completion or failure.
type SyncRun struct {
	shared.BaseEntity
	TenantID    uuid.UUID
	ChannelID   uuid.UUID
	Type        SyncRunType
	Direction   SyncDirection
	Status      SyncRunStatus
	Stats       SyncStats
	ItemErrors  []ItemError
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// NewSyncRun creates a running execution record
func NewSyncRun(tenantID, channelID uuid.UUID, runType SyncRunType, direction SyncDirection) *SyncRun {
	return &SyncRun{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		ChannelID:  channelID,
		Type:       runType,
		Direction:  direction,
		Status:     SyncRunRunning,
		StartedAt:  time.Now(),
	}
}

// Complete finalizes the run as successful with its aggregate stats
func (r *SyncRun) Complete(stats SyncStats, itemErrors []ItemError) {
	now := time.Now()
	r.Status = SyncRunCompleted
	r.Stats = stats
	r.ItemErrors = itemErrors
	r.CompletedAt = &now
	r.Touch()
}

// Fail finalizes the run as failed, keeping whatever stats accumulated
func (r *SyncRun) Fail(stats SyncStats, itemErrors []ItemError, cause error) {
	now := time.Now()
	r.Status = SyncRunFailed
	r.Stats = stats
	r.ItemErrors = itemErrors
	if cause != nil {
		r.Error = cause.Error()
	}
	r.CompletedAt = &now
	r.Touch()
}

// ---------------------------------------------------------------------------
// SyncOptions
// ---------------------------------------------------------------------------

// SyncOptions configures one orchestrated sync execution
type SyncOptions struct {
	Resources []ResourceType
	Direction SyncDirection
	FullSync  bool
}

// Validate checks the options and applies defaults
func (o *SyncOptions) Validate() error {
	if len(o.Resources) == 0 {
		return ErrInvalidResource
	}
	for _, r := range o.Resources {
		if !r.IsValid() {
			return ErrInvalidResource
		}
	}
	if o.Direction == "" {
		o.Direction = DirectionBoth
	}
	if !o.Direction.IsValid() {
		return ErrInvalidDirection
	}
	return nil
}

// RunType derives the run type recorded on the SyncRun row
func (o *SyncOptions) RunType() SyncRunType {
	if o.FullSync {
		return SyncRunFull
	}
	return SyncRunIncremental
}
