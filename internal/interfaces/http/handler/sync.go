package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/interfaces/http/middleware"
)

const defaultConflictPageSize = 50

// SyncExecutor runs orchestrated sync executions
type SyncExecutor interface {
	ExecuteSync(ctx context.Context, ch *channel.Channel, opts channel.SyncOptions) (*channel.SyncRun, error)
}

// SyncHandler handles sync trigger and inspection endpoints
type SyncHandler struct {
	BaseHandler
	channels     channel.ChannelRepository
	runs         channel.SyncRunRepository
	conflicts    channel.ConflictRecordRepository
	limiter      channel.RateLimiter
	orchestrator SyncExecutor
	logger       *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(
	channels channel.ChannelRepository,
	runs channel.SyncRunRepository,
	conflicts channel.ConflictRecordRepository,
	limiter channel.RateLimiter,
	orchestrator SyncExecutor,
	log *zap.Logger,
) *SyncHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncHandler{
		channels:     channels,
		runs:         runs,
		conflicts:    conflicts,
		limiter:      limiter,
		orchestrator: orchestrator,
		logger:       log,
	}
}

// TriggerSync handles POST /api/v1/channels/:id/sync. The execution
// runs synchronously and the finalized run is returned; per-item
// failures are reported in the run rather than failing the request.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	channelID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "id must be a valid UUID")
		return
	}

	var req TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		middleware.HandleValidationError(c, err)
		return
	}

	opts := channel.SyncOptions{
		Direction: channel.SyncDirection(req.Direction),
		FullSync:  req.FullSync,
	}
	if len(req.Resources) == 0 {
		opts.Resources = []channel.ResourceType{
			channel.ResourceProducts,
			channel.ResourceInventory,
			channel.ResourceOrders,
		}
	} else {
		for _, r := range req.Resources {
			opts.Resources = append(opts.Resources, channel.ResourceType(r))
		}
	}

	ch, err := h.channels.FindByID(c.Request.Context(), channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	run, err := h.orchestrator.ExecuteSync(c.Request.Context(), ch, opts)
	if run == nil {
		h.HandleError(c, err)
		return
	}
	if err != nil {
		h.logger.Warn("triggered sync finished with error",
			zap.String("channel_id", channelID.String()),
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	}
	h.Success(c, newSyncRunResponse(run))
}

// GetSyncRun handles GET /api/v1/sync-runs/:id
func (h *SyncHandler) GetSyncRun(c *gin.Context) {
	runID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "id must be a valid UUID")
		return
	}

	run, err := h.runs.FindByID(c.Request.Context(), runID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newSyncRunResponse(run))
}

// GetRateLimits handles GET /api/v1/channels/:id/rate-limits
func (h *SyncHandler) GetRateLimits(c *gin.Context) {
	channelID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "id must be a valid UUID")
		return
	}

	if _, err := h.channels.FindByID(c.Request.Context(), channelID); err != nil {
		h.HandleError(c, err)
		return
	}

	statuses, err := h.limiter.GetStatus(c.Request.Context(), channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]RateLimitStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, newRateLimitStatusResponse(s))
	}
	h.Success(c, out)
}

// ListConflicts handles GET /api/v1/conflicts; it returns conflicts
// queued for manual review for the requesting tenant.
func (h *SyncHandler) ListConflicts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "X-Tenant-ID must be a valid UUID")
		return
	}

	limit := defaultConflictPageSize
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
	}

	records, err := h.conflicts.FindQueued(c.Request.Context(), tenantID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]ConflictResponse, 0, len(records))
	for i := range records {
		out = append(out, newConflictResponse(&records[i]))
	}
	h.Success(c, out)
}
