package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/channelsync/backend/internal/domain/channel"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeChannelRepo serves channels from a map keyed by ID
type fakeChannelRepo struct {
	channels map[uuid.UUID]*channel.Channel
}

func newFakeChannelRepo(chs ...*channel.Channel) *fakeChannelRepo {
	repo := &fakeChannelRepo{channels: make(map[uuid.UUID]*channel.Channel)}
	for _, ch := range chs {
		repo.channels[ch.ID] = ch
	}
	return repo
}

func (r *fakeChannelRepo) FindByID(_ context.Context, id uuid.UUID) (*channel.Channel, error) {
	ch, ok := r.channels[id]
	if !ok {
		return nil, channel.ErrChannelNotFound
	}
	return ch, nil
}

func (r *fakeChannelRepo) FindActiveByTenant(_ context.Context, tenantID uuid.UUID) ([]channel.Channel, error) {
	var out []channel.Channel
	for _, ch := range r.channels {
		if ch.TenantID == tenantID && ch.Active {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (r *fakeChannelRepo) Save(_ context.Context, ch *channel.Channel) error {
	r.channels[ch.ID] = ch
	return nil
}

func (r *fakeChannelRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.channels, id)
	return nil
}

// fakeRunRepo serves sync runs from a map keyed by ID
type fakeRunRepo struct {
	runs map[uuid.UUID]*channel.SyncRun
}

func newFakeRunRepo(runs ...*channel.SyncRun) *fakeRunRepo {
	repo := &fakeRunRepo{runs: make(map[uuid.UUID]*channel.SyncRun)}
	for _, run := range runs {
		repo.runs[run.ID] = run
	}
	return repo
}

func (r *fakeRunRepo) FindByID(_ context.Context, id uuid.UUID) (*channel.SyncRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, channel.ErrSyncRunNotFound
	}
	return run, nil
}

func (r *fakeRunRepo) Save(_ context.Context, run *channel.SyncRun) error {
	r.runs[run.ID] = run
	return nil
}

// fakeConflictRepo returns a fixed set of queued conflicts
type fakeConflictRepo struct {
	queued []channel.ConflictRecord
	limit  int
}

func (r *fakeConflictRepo) Append(_ context.Context, rec *channel.ConflictRecord) error {
	r.queued = append(r.queued, *rec)
	return nil
}

func (r *fakeConflictRepo) FindQueued(_ context.Context, _ uuid.UUID, limit int) ([]channel.ConflictRecord, error) {
	r.limit = limit
	if limit > len(r.queued) {
		limit = len(r.queued)
	}
	return r.queued[:limit], nil
}

// fakeLimiter returns canned statuses and errors
type fakeLimiter struct {
	statuses []channel.OperationStatus
	checkErr error
}

func (l *fakeLimiter) CheckLimit(_ context.Context, _ uuid.UUID, _ string) error {
	return l.checkErr
}

func (l *fakeLimiter) GetStatus(_ context.Context, _ uuid.UUID) ([]channel.OperationStatus, error) {
	return l.statuses, nil
}

func (l *fakeLimiter) Reset(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

// fakeExecutor records the options it was invoked with
type fakeExecutor struct {
	run  *channel.SyncRun
	err  error
	opts channel.SyncOptions
}

func (e *fakeExecutor) ExecuteSync(_ context.Context, ch *channel.Channel, opts channel.SyncOptions) (*channel.SyncRun, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !ch.Active {
		return nil, channel.ErrChannelInactive
	}
	e.opts = opts
	return e.run, e.err
}

// fakeProcessor records Process/Retry invocations
type fakeProcessor struct {
	delivery *channel.WebhookDelivery
	err      error
	event    string
	payload  map[string]any
	retried  uuid.UUID
}

func (p *fakeProcessor) Process(_ context.Context, ch *channel.Channel, event string, payload map[string]any) (*channel.WebhookDelivery, error) {
	p.event = event
	p.payload = payload
	if p.delivery == nil && p.err == nil {
		p.delivery = channel.NewWebhookDelivery(ch.TenantID, ch.ID, event, payload)
		p.delivery.Complete(map[string]any{"queued": true})
	}
	return p.delivery, p.err
}

func (p *fakeProcessor) Retry(_ context.Context, deliveryID uuid.UUID) (*channel.WebhookDelivery, error) {
	p.retried = deliveryID
	return p.delivery, p.err
}

func mustChannel(t *testing.T, channelType channel.ChannelType, config map[string]any) *channel.Channel {
	t.Helper()
	ch, err := channel.NewChannel(uuid.New(), "test channel", channelType, config)
	require.NoError(t, err)
	return ch
}

// newTestEngine builds a bare engine with only the routes under test
func newTestEngine(register func(*gin.Engine)) http.Handler {
	engine := gin.New()
	register(engine)
	return engine
}
