package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/interfaces/http/dto"
)

// WebhookProcessor runs inbound webhook deliveries
type WebhookProcessor interface {
	Process(ctx context.Context, ch *channel.Channel, event string, payload map[string]any) (*channel.WebhookDelivery, error)
	Retry(ctx context.Context, deliveryID uuid.UUID) (*channel.WebhookDelivery, error)
}

// VerifyFunc checks the platform signature on a webhook request body
type VerifyFunc func(ch *channel.Channel, body []byte, header http.Header) error

// WebhookHandler handles webhook ingestion endpoints
type WebhookHandler struct {
	BaseHandler
	channels  channel.ChannelRepository
	processor WebhookProcessor
	verify    VerifyFunc
	logger    *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(
	channels channel.ChannelRepository,
	processor WebhookProcessor,
	verify VerifyFunc,
	log *zap.Logger,
) *WebhookHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{
		channels:  channels,
		processor: processor,
		verify:    verify,
		logger:    log,
	}
}

// Receive handles POST /api/v1/webhooks/:channel_id/:event.
// The delivery is recorded and processed; processing failures are
// retried asynchronously, so the platform always gets 202 once the
// delivery is accepted.
func (h *WebhookHandler) Receive(c *gin.Context) {
	channelID, err := parseUUIDParam(c, "channel_id")
	if err != nil {
		h.BadRequest(c, "channel_id must be a valid UUID")
		return
	}
	event := c.Param("event")

	ch, err := h.channels.FindByID(c.Request.Context(), channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !ch.Active {
		h.HandleError(c, channel.ErrChannelInactive)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeBadRequest, "request body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "failed to read request body")
		return
	}

	if h.verify != nil {
		if err := h.verify(ch, body, c.Request.Header); err != nil {
			h.logger.Warn("webhook signature rejected",
				zap.String("channel_id", channelID.String()),
				zap.String("event", event),
			)
			h.HandleError(c, err)
			return
		}
	}

	payload := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			h.HandleError(c, channel.ErrInvalidWebhookPayload)
			return
		}
	}

	delivery, err := h.processor.Process(c.Request.Context(), ch, event, payload)
	if delivery == nil {
		h.HandleError(c, err)
		return
	}

	// Processing errors are recorded on the delivery and retried by the
	// worker; the platform should not re-send on its own.
	h.Accepted(c, newDeliveryResponse(delivery))
}

// RetryDelivery handles POST /api/v1/webhook-deliveries/:id/retry
func (h *WebhookHandler) RetryDelivery(c *gin.Context) {
	deliveryID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "id must be a valid UUID")
		return
	}

	delivery, err := h.processor.Retry(c.Request.Context(), deliveryID)
	if delivery == nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newDeliveryResponse(delivery))
}
