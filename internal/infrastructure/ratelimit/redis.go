package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/channelsync/backend/internal/domain/channel"
)

const defaultKeyPrefix = "channelsync:ratelimit:"

// RedisLimiter implements the rate limiter on a Redis sorted set per
// (channel, operation): members are request markers scored by their
// nanosecond timestamp. Trim, count and conditional insert run in one
// Lua script, so concurrent workers across processes cannot overshoot
// the budget by racing between the count and the insert, and a
// rejected request never leaves a marker behind.
type RedisLimiter struct {
	client    *redis.Client
	limits    *Limits
	keyPrefix string
	now       func() time.Time
}

// NewRedisLimiter creates a limiter sharing an existing Redis client
func NewRedisLimiter(client *redis.Client, limits *Limits, keyPrefix string) *RedisLimiter {
	if limits == nil {
		limits = NewLimits()
	}
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisLimiter{
		client:    client,
		limits:    limits,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	l.now = now
	return l
}

func (l *RedisLimiter) key(channelID uuid.UUID, operation string) string {
	return fmt.Sprintf("%s%s:%s", l.keyPrefix, channelID, operation)
}

// checkScript trims expired markers, counts the window and inserts the
// new marker only when there is budget left, in one atomic round trip.
// KEYS[1] is the window key; ARGV is cutoff, limit, score, member and
// TTL in milliseconds. The reply is {1, count} when the request is
// allowed and {0, oldest score} when it is rejected.
var checkScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[2]) then
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	return {1, count + 1}
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {0, oldest[2]}
`)

// CheckLimit records one request if the window has budget left.
func (l *RedisLimiter) CheckLimit(ctx context.Context, channelID uuid.UUID, operation string) error {
	limit := l.limits.Resolve(channelID, operation)
	now := l.now()
	key := l.key(channelID, operation)
	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString())

	res, err := checkScript.Run(ctx, l.client, []string{key},
		strconv.FormatInt(now.Add(-limit.Window).UnixNano(), 10),
		limit.Limit,
		strconv.FormatInt(now.UnixNano(), 10),
		member,
		limit.Window.Milliseconds(),
	).Result()
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}

	allowed, oldestNanos, err := parseCheckReply(res)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if allowed {
		return nil
	}

	reset := now.Add(limit.Window)
	if oldestNanos > 0 {
		reset = time.Unix(0, oldestNanos).Add(limit.Window)
	}
	return &channel.RateLimitExceededError{
		ChannelID: channelID.String(),
		Operation: operation,
		Limit:     limit.Limit,
		Window:    limit.Window,
		ResetTime: reset,
		WaitTime:  reset.Sub(now),
	}
}

// parseCheckReply decodes the script reply. Redis hands sorted set
// scores back as strings, so the oldest score needs a float parse.
func parseCheckReply(res interface{}) (bool, int64, error) {
	reply, ok := res.([]interface{})
	if !ok || len(reply) == 0 {
		return false, 0, fmt.Errorf("unexpected script reply %T", res)
	}
	flag, ok := reply[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected allowed flag %T", reply[0])
	}
	if flag == 1 {
		return true, 0, nil
	}
	if len(reply) < 2 {
		return false, 0, nil
	}
	switch v := reply[1].(type) {
	case int64:
		return false, v, nil
	case string:
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false, 0, fmt.Errorf("unexpected oldest score %q", v)
		}
		return false, int64(score), nil
	default:
		return false, 0, fmt.Errorf("unexpected oldest score %T", reply[1])
	}
}

// GetStatus reports window usage for every operation with a live key
// on the channel.
func (l *RedisLimiter) GetStatus(ctx context.Context, channelID uuid.UUID) ([]channel.OperationStatus, error) {
	pattern := fmt.Sprintf("%s%s:*", l.keyPrefix, channelID)
	prefix := fmt.Sprintf("%s%s:", l.keyPrefix, channelID)

	statuses := make([]channel.OperationStatus, 0)
	iter := l.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		operation := key[len(prefix):]
		limit := l.limits.Resolve(channelID, operation)
		now := l.now()
		cutoff := strconv.FormatInt(now.Add(-limit.Window).UnixNano(), 10)

		used, err := l.client.ZCount(ctx, key, cutoff, "+inf").Result()
		if err != nil {
			return nil, fmt.Errorf("rate limit status: %w", err)
		}

		status := channel.OperationStatus{
			Operation: operation,
			Limit:     limit.Limit,
			Window:    limit.Window,
			Used:      int(used),
			Remaining: limit.Limit - int(used),
		}
		if status.Remaining < 0 {
			status.Remaining = 0
		}
		if oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result(); err == nil && len(oldest) > 0 {
			status.ResetTime = time.Unix(0, int64(oldest[0].Score)).Add(limit.Window)
		}
		statuses = append(statuses, status)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("rate limit status scan: %w", err)
	}
	return statuses, nil
}

// Reset clears one operation's window, or every window of the channel
// when operation is empty.
func (l *RedisLimiter) Reset(ctx context.Context, channelID uuid.UUID, operation string) error {
	if operation != "" {
		return l.client.Del(ctx, l.key(channelID, operation)).Err()
	}

	pattern := fmt.Sprintf("%s%s:*", l.keyPrefix, channelID)
	iter := l.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

var _ channel.RateLimiter = (*RedisLimiter)(nil)
