package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func TestWithContext(t *testing.T) {
	log := zap.NewNop()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}

func TestFromContext_MissingLoggerReturnsNop(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	assert.NotPanics(t, func() { log.Info("no-op") })
}

func TestWithRequestID(t *testing.T) {
	log, logs := newObservedLogger()

	ctx, enriched := WithRequestID(context.Background(), log, "req-123")
	enriched.Info("hello")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-123", logs.All()[0].ContextMap()["request_id"])
}

func TestWithTenantID(t *testing.T) {
	log, logs := newObservedLogger()

	ctx, enriched := WithTenantID(context.Background(), log, "tenant-1")
	enriched.Info("hello")

	assert.Equal(t, "tenant-1", GetTenantID(ctx))
	assert.Equal(t, "tenant-1", logs.All()[0].ContextMap()["tenant_id"])
}

func TestWithChannelID(t *testing.T) {
	log, logs := newObservedLogger()

	ctx, enriched := WithChannelID(context.Background(), log, "chan-9")
	enriched.Info("hello")

	assert.Equal(t, "chan-9", GetChannelID(ctx))
	assert.Equal(t, "chan-9", logs.All()[0].ContextMap()["channel_id"])
}

func TestContextLogger_InjectsContextFields(t *testing.T) {
	log, logs := newObservedLogger()

	ctx := WithContext(context.Background(), log)
	ctx, _ = WithRequestID(ctx, FromContext(ctx), "req-7")
	ctx, _ = WithChannelID(ctx, FromContext(ctx), "chan-7")

	L(ctx).Info("sync started")

	require.GreaterOrEqual(t, logs.Len(), 1)
	entry := logs.All()[logs.Len()-1]
	assert.Equal(t, "sync started", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "chan-7", fields["channel_id"])
}

func TestContextLogger_WithLogger(t *testing.T) {
	log, logs := newObservedLogger()

	WithLogger(context.Background(), log).Warn("careful", zap.String("k", "v"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "careful", logs.All()[0].Message)
	assert.Equal(t, "v", logs.All()[0].ContextMap()["k"])
}

func TestContextLogger_NilLoggerDoesNotPanic(t *testing.T) {
	cl := &ContextLogger{ctx: context.Background()}
	assert.NotPanics(t, func() { cl.Info("ignored") })
}

func TestWithTraceContext_NoSpanUnchanged(t *testing.T) {
	log := zap.NewNop()
	assert.Same(t, log, WithTraceContext(context.Background(), log))
}
