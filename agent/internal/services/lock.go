package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrKickoffBusy means a relevance recalculation is already running.
var ErrKickoffBusy = errors.New("relevance recalculation already in progress")

const (
	kickoffLockKey = "bidhub:relevance:kickoff"
	kickoffLockTTL = 10 * time.Minute
)

// Released only when the caller still holds the token it acquired with.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// KickoffLock guards the filter-change relevance recalculation so only
// one runs at a time across all instances. With no Redis configured it
// degrades to a no-op lock, which is fine for a single instance.
type KickoffLock struct {
	client *redis.Client
}

func NewKickoffLock(redisURL string) *KickoffLock {
	if redisURL == "" {
		return &KickoffLock{}
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("WARN: Invalid REDIS_URL, relevance lock disabled: %v", err)
		return &KickoffLock{}
	}
	return &KickoffLock{client: redis.NewClient(opts)}
}

// Acquire takes the lock and returns the release token. Returns
// ErrKickoffBusy when another run holds it.
func (l *KickoffLock) Acquire(ctx context.Context) (string, error) {
	if l.client == nil {
		return "", nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, kickoffLockKey, token, kickoffLockTTL).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrKickoffBusy
	}
	return token, nil
}

// Release frees the lock if token still owns it. An expired or stolen
// token releases nothing.
func (l *KickoffLock) Release(ctx context.Context, token string) {
	if l.client == nil || token == "" {
		return
	}
	if err := releaseScript.Run(ctx, l.client, []string{kickoffLockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("ERROR: Failed to release relevance kickoff lock: %v", err)
	}
}

// Busy reports whether a recalculation currently holds the lock.
func (l *KickoffLock) Busy(ctx context.Context) bool {
	if l.client == nil {
		return false
	}
	n, err := l.client.Exists(ctx, kickoffLockKey).Result()
	if err != nil {
		log.Printf("ERROR: Failed to check relevance kickoff lock: %v", err)
		return false
	}
	return n > 0
}
