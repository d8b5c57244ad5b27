package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/channelsync/backend/internal/domain/channel"
)

const (
	defaultKeyPrefix = "channelsync:queue:"

	// priorityWindow is how far a fully elevated job may jump ahead of
	// same-ready-time work. Priorities are small integers, so one
	// millisecond per priority point keeps ordering stable without
	// letting priority override readiness by much.
	priorityWindow = time.Millisecond
)

// RedisQueue delivers jobs through a Redis sorted set per topic. The
// score encodes ready time minus a priority bias, so ZPOPMIN yields
// the most urgent ready job; job bodies live in a companion hash.
type RedisQueue struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisQueue creates a queue sharing an existing Redis client
func NewRedisQueue(client *redis.Client, keyPrefix string) *RedisQueue {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisQueue{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (q *RedisQueue) scheduleKey(topic string) string {
	return q.keyPrefix + topic + ":schedule"
}

func (q *RedisQueue) bodyKey(topic string) string {
	return q.keyPrefix + topic + ":jobs"
}

// Enqueue adds one job to the topic
func (q *RedisQueue) Enqueue(ctx context.Context, topic string, payload any, opts channel.EnqueueOptions) (*channel.Job, error) {
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
	encoded, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	score := float64(job.RunAt.UnixMilli()) - float64(job.Priority)*priorityWindow.Seconds()*1000

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.bodyKey(topic), job.ID.String(), encoded)
	pipe.ZAdd(ctx, q.scheduleKey(topic), redis.Z{Score: score, Member: job.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Dequeue pops the next ready job from the topic, or nil when no job
// is ready yet.
func (q *RedisQueue) Dequeue(ctx context.Context, topic string) (*channel.Job, error) {
	maxScore := strconv.FormatInt(q.now().UnixMilli(), 10)

	ids, err := q.client.ZRangeByScore(ctx, q.scheduleKey(topic), &redis.ZRangeBy{
		Min: "-inf", Max: maxScore, Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("dequeue poll: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	id := ids[0]

	// Another worker may take the job between the range and the
	// remove; a zero removal count means we lost the race.
	removed, err := q.client.ZRem(ctx, q.scheduleKey(topic), id).Result()
	if err != nil {
		return nil, fmt.Errorf("dequeue claim: %w", err)
	}
	if removed == 0 {
		return nil, nil
	}

	encoded, err := q.client.HGet(ctx, q.bodyKey(topic), id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue body: %w", err)
	}
	if err := q.client.HDel(ctx, q.bodyKey(topic), id).Err(); err != nil {
		return nil, fmt.Errorf("dequeue cleanup: %w", err)
	}

	var job channel.Job
	if err := json.Unmarshal([]byte(encoded), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

var _ channel.Queue = (*RedisQueue)(nil)
