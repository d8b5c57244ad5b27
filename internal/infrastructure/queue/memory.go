package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/channelsync/backend/internal/domain/channel"
)

// MemoryQueue is an in-process queue ordered by (ready time, inverse
// priority). Suitable for single-instance deployments and testing;
// multi-process deployments need the Redis queue.
type MemoryQueue struct {
	mu     sync.Mutex
	topics map[string][]*channel.Job
	now    func() time.Time
}

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		topics: make(map[string][]*channel.Job),
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests
func (q *MemoryQueue) WithClock(now func() time.Time) *MemoryQueue {
	q.now = now
	return q
}

// Enqueue adds one job to the topic
func (q *MemoryQueue) Enqueue(_ context.Context, topic string, payload any, opts channel.EnqueueOptions) (*channel.Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	job := &channel.Job{
		ID:       uuid.New(),
		Topic:    topic,
		Payload:  body,
		Priority: opts.Priority,
		RunAt:    q.now().Add(opts.Delay),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.topics[topic] = append(q.topics[topic], job)
	sort.SliceStable(q.topics[topic], func(i, j int) bool {
		a, b := q.topics[topic][i], q.topics[topic][j]
		if !a.RunAt.Equal(b.RunAt) {
			return a.RunAt.Before(b.RunAt)
		}
		return a.Priority > b.Priority
	})
	return job, nil
}

// Dequeue pops the next ready job from the topic, or nil when no job
// is ready yet.
func (q *MemoryQueue) Dequeue(_ context.Context, topic string) (*channel.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := q.topics[topic]
	if len(jobs) == 0 {
		return nil, nil
	}
	if jobs[0].RunAt.After(q.now()) {
		return nil, nil
	}
	job := jobs[0]
	q.topics[topic] = jobs[1:]
	return job, nil
}

// Len reports the number of queued jobs on the topic, ready or not
func (q *MemoryQueue) Len(topic string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.topics[topic])
}

var _ channel.Queue = (*MemoryQueue)(nil)
