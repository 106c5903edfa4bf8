// Package redislock provides a distributed implementation of the
// locker contract on top of Redis. Locks are plain SET NX keys with a
// TTL and a random holder token; release deletes the key only when the
// token still matches, so an expired lock cannot release its
// successor.
package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "bookinglock:"
	defaultTTL    = 30 * time.Second
	retryInterval = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker acquires keyed locks in Redis so multiple service instances
// can serialize work on the same room or reservation.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Locker using the default lock TTL.
func New(client *redis.Client) *Locker {
	return &Locker{client: client, ttl: defaultTTL}
}

// NewWithTTL returns a Locker with a custom lock TTL.
func NewWithTTL(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire blocks until the key is locked or the context ends. The
// returned release is safe to call more than once.
func (locker *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := keyPrefix + key
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		acquired, err := locker.client.SetNX(ctx, redisKey, token, locker.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if acquired {
			var once sync.Once
			release := func() {
				once.Do(func() {
					releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = releaseScript.Run(releaseCtx, locker.client, []string{redisKey}, token).Err()
				})
			}
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
