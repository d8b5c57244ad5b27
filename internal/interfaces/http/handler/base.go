// Package handler contains the gin HTTP handlers.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/channelsync/backend/internal/interfaces/http/dto"
)

// defaultTenantID is used when no X-Tenant-ID header is present.
// Auth integration replaces this with the authenticated tenant.
var defaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID set by the middleware
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// getTenantID extracts the tenant ID from the X-Tenant-ID header
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetHeader("X-Tenant-ID")
	if raw == "" {
		return defaultTenantID, nil
	}
	return uuid.Parse(raw)
}

// parseUUIDParam parses a UUID path parameter
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

// Success sends a 200 success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving the status from the code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps domain errors to HTTP responses. Rate limit
// rejections carry a Retry-After header with the wait in seconds.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	if rle, ok := channel.IsRateLimitExceeded(err); ok {
		seconds := int(rle.WaitTime.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		h.Error(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, err.Error())
		return
	}

	var adapterErr *channel.AdapterError
	if errors.As(err, &adapterErr) {
		h.Error(c, http.StatusBadGateway, dto.ErrCodeUpstream, adapterErr.Error())
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := domainErrorCode(domainErr)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	switch {
	case errors.Is(err, channel.ErrChannelNotFound),
		errors.Is(err, channel.ErrSyncRunNotFound),
		errors.Is(err, channel.ErrDeliveryNotFound),
		errors.Is(err, channel.ErrSyncStateNotFound),
		errors.Is(err, channel.ErrLocalItemNotFound):
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, err.Error())

	case errors.Is(err, channel.ErrWebhookSignatureFailed):
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, err.Error())

	case errors.Is(err, channel.ErrChannelInactive),
		errors.Is(err, channel.ErrDeliveryNotRetryable):
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, err.Error())

	case errors.Is(err, channel.ErrInvalidResource),
		errors.Is(err, channel.ErrInvalidDirection),
		errors.Is(err, channel.ErrUnknownChannelType),
		errors.Is(err, channel.ErrInvalidWebhookPayload):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, err.Error())

	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}

// domainErrorCode maps shared.DomainError codes onto API error codes
func domainErrorCode(err *shared.DomainError) string {
	switch err.Code {
	case "NOT_FOUND":
		return dto.ErrCodeNotFound
	case "INVALID_INPUT":
		return dto.ErrCodeValidation
	case "INVALID_STATE":
		return dto.ErrCodeInvalidState
	case "ALREADY_EXISTS", "CONCURRENCY_CONFLICT":
		return dto.ErrCodeConflict
	default:
		return dto.ErrCodeInternal
	}
}
