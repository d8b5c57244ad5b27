package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/channelsync/backend/internal/domain/channel"
	"github.com/channelsync/backend/internal/domain/shared"
)

func mustChannel(t *testing.T, typ channel.ChannelType) *channel.Channel {
	t.Helper()
	ch, err := channel.NewChannel(uuid.New(), "test-channel", typ, map[string]any{
		"shop_domain": "example.myshopify.com",
	})
	require.NoError(t, err)
	return ch
}

// In-memory fakes for the orchestrator's collaborators. They keep the
// same not-found sentinel semantics as the real repositories.

type memConflicts struct {
	mu      sync.Mutex
	records []*channel.ConflictRecord
	err     error
}

func (m *memConflicts) Append(_ context.Context, rec *channel.ConflictRecord) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memConflicts) FindQueued(_ context.Context, tenantID uuid.UUID, limit int) ([]channel.ConflictRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]channel.ConflictRecord, 0)
	for _, r := range m.records {
		if r.TenantID == tenantID && r.Action == channel.ActionQueue {
			out = append(out, *r)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type memStates struct {
	mu     sync.Mutex
	states map[string]*channel.SyncState
}

func newMemStates() *memStates {
	return &memStates{states: make(map[string]*channel.SyncState)}
}

func localKey(channelID uuid.UUID, resource channel.ResourceType, localID uuid.UUID) string {
	return fmt.Sprintf("l|%s|%s|%s", channelID, resource, localID)
}

func remoteKey(channelID uuid.UUID, resource channel.ResourceType, remoteID string) string {
	return fmt.Sprintf("r|%s|%s|%s", channelID, resource, remoteID)
}

func (m *memStates) FindByLocalID(_ context.Context, channelID uuid.UUID, resource channel.ResourceType, localID uuid.UUID) (*channel.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[localKey(channelID, resource, localID)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, channel.ErrSyncStateNotFound
}

func (m *memStates) FindByRemoteID(_ context.Context, channelID uuid.UUID, resource channel.ResourceType, remoteID string) (*channel.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[remoteKey(channelID, resource, remoteID)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, channel.ErrSyncStateNotFound
}

func (m *memStates) Upsert(_ context.Context, state *channel.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[localKey(state.ChannelID, state.Resource, state.LocalID)] = &cp
	m.states[remoteKey(state.ChannelID, state.Resource, state.RemoteID)] = &cp
	return nil
}

func (m *memStates) DeleteByChannel(_ context.Context, channelID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, s := range m.states {
		if s.ChannelID == channelID {
			delete(m.states, k)
		}
	}
	return nil
}

type memStore struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*channel.Item
	createErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{items: make(map[uuid.UUID]*channel.Item)}
}

func (m *memStore) FindByID(_ context.Context, _ uuid.UUID, _ channel.ResourceType, localID uuid.UUID) (*channel.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[localID]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, channel.ErrLocalItemNotFound
}

func (m *memStore) FindByNaturalKey(_ context.Context, _ uuid.UUID, resource channel.ResourceType, key string) (*channel.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.Resource == resource && it.NaturalKey() == key {
			cp := *it
			return &cp, nil
		}
	}
	return nil, channel.ErrLocalItemNotFound
}

func (m *memStore) Create(_ context.Context, _ uuid.UUID, item *channel.Item) (*channel.Item, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	cp.LocalID = uuid.New()
	m.items[cp.LocalID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) Update(_ context.Context, _ uuid.UUID, localID uuid.UUID, item *channel.Item) (*channel.Item, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[localID]
	if !ok {
		return nil, channel.ErrLocalItemNotFound
	}
	cp := *item
	cp.LocalID = localID
	if cp.Resource == "" {
		cp.Resource = existing.Resource
	}
	m.items[localID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) ModifiedSince(_ context.Context, _ uuid.UUID, _ uuid.UUID, resource channel.ResourceType, since *time.Time) ([]channel.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]channel.Item, 0)
	for _, it := range m.items {
		if it.Resource != resource {
			continue
		}
		if since != nil && !it.UpdatedAt.After(*since) {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*channel.SyncRun
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[uuid.UUID]*channel.SyncRun)}
}

func (m *memRuns) FindByID(_ context.Context, id uuid.UUID) (*channel.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, channel.ErrSyncRunNotFound
}

func (m *memRuns) Save(_ context.Context, run *channel.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

type memChannels struct {
	mu       sync.Mutex
	channels map[uuid.UUID]*channel.Channel
}

func newMemChannels() *memChannels {
	return &memChannels{channels: make(map[uuid.UUID]*channel.Channel)}
}

func (m *memChannels) FindByID(_ context.Context, id uuid.UUID) (*channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.channels[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, channel.ErrChannelNotFound
}

func (m *memChannels) FindActiveByTenant(_ context.Context, tenantID uuid.UUID) ([]channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]channel.Channel, 0)
	for _, c := range m.channels {
		if c.TenantID == tenantID && c.Active {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memChannels) Save(_ context.Context, ch *channel.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ch
	m.channels[ch.ID] = &cp
	return nil
}

func (m *memChannels) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, id)
	return nil
}

// stubLimiter allows everything unless an error is injected
type stubLimiter struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (l *stubLimiter) CheckLimit(_ context.Context, channelID uuid.UUID, operation string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, operation)
	return l.err
}

func (l *stubLimiter) GetStatus(context.Context, uuid.UUID) ([]channel.OperationStatus, error) {
	return nil, nil
}

func (l *stubLimiter) Reset(context.Context, uuid.UUID, string) error {
	return nil
}

// capturingBus records published events
type capturingBus struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (b *capturingBus) Publish(_ context.Context, events ...shared.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *capturingBus) typesSeen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType())
	}
	return out
}

// fakeAdapter serves canned pages and records writes
type fakeAdapter struct {
	mu         sync.Mutex
	pages      map[channel.ResourceType][][]channel.Item
	connectErr error
	fetchErr   error
	created    []channel.Item
	updated    []channel.Item
	nextID     int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{pages: make(map[channel.ResourceType][][]channel.Item)}
}

func (a *fakeAdapter) Type() channel.ChannelType { return channel.ChannelTypeShopify }

func (a *fakeAdapter) Connect(context.Context) error { return a.connectErr }

func (a *fakeAdapter) Disconnect(context.Context) error { return nil }
func (a *fakeAdapter) CheckHealth(context.Context) error {
	return a.connectErr
}

func (a *fakeAdapter) FetchResources(_ context.Context, resource channel.ResourceType, opts channel.FetchOptions) ([]channel.Item, error) {
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	pages := a.pages[resource]
	if opts.Page < 1 || opts.Page > len(pages) {
		return nil, nil
	}
	return pages[opts.Page-1], nil
}

func (a *fakeAdapter) CreateResource(_ context.Context, resource channel.ResourceType, item channel.Item) (*channel.Item, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	item.Resource = resource
	item.RemoteID = fmt.Sprintf("remote-%d", a.nextID)
	a.created = append(a.created, item)
	return &item, nil
}

func (a *fakeAdapter) UpdateResource(_ context.Context, resource channel.ResourceType, remoteID string, item channel.Item) (*channel.Item, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	item.Resource = resource
	item.RemoteID = remoteID
	a.updated = append(a.updated, item)
	return &item, nil
}

func (a *fakeAdapter) DeleteResource(context.Context, channel.ResourceType, string) error {
	return nil
}

func (a *fakeAdapter) SetupWebhooks(context.Context, string) error { return nil }

func (a *fakeAdapter) RemoveWebhooks(context.Context) error { return nil }

var _ channel.Adapter = (*fakeAdapter)(nil)
var _ channel.LocalStore = (*memStore)(nil)
var _ channel.SyncStateRepository = (*memStates)(nil)
var _ channel.ConflictRecordRepository = (*memConflicts)(nil)
var _ channel.SyncRunRepository = (*memRuns)(nil)
var _ channel.ChannelRepository = (*memChannels)(nil)
var _ channel.RateLimiter = (*stubLimiter)(nil)
var _ shared.EventPublisher = (*capturingBus)(nil)
