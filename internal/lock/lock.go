// Package lock serializes navigation processing per registration across
// platform nodes.
//
// A node takes a short-lived Redis lease before materializing a session
// and releases it after the save commits. In-process callers already hold
// the Session exclusively; the lease extends that exclusivity across
// nodes so two frontends can never process requests for the same
// registration concurrently.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces lease keys in a shared Redis.
const keyPrefix = "aivoseq:lock:"

// ErrHeld is returned by Acquire while another holder has the lease.
var ErrHeld = errors.New("registration is locked by another holder")

// ErrNotHeld is returned by Release and Refresh when the lease has
// expired or been taken over.
var ErrNotHeld = errors.New("lease no longer held")

// releaseScript deletes the key only while it still carries our token,
// so a holder whose lease expired never deletes a successor's.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// refreshScript extends the key's TTL only while it still carries our
// token.
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Connect creates a Redis client from a URL.
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Locker hands out per-registration leases.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Locker. ttl bounds how long a crashed holder can block a
// registration.
func New(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the lease for a registration.
// Returns ErrHeld while another holder has it.
func (l *Locker) Acquire(ctx context.Context, registrationID string) (*Lease, error) {
	lease := &Lease{
		client: l.client,
		key:    keyPrefix + registrationID,
		token:  uuid.NewString(),
		ttl:    l.ttl,
	}
	ok, err := l.client.SetNX(ctx, lease.key, lease.token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", registrationID, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire lock for %s: %w", registrationID, ErrHeld)
	}
	return lease, nil
}

// Lease is one held registration lock. The token makes release and
// refresh safe against expiry: operations only apply while the key still
// carries the token this holder set.
type Lease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// Release gives the lease up.
// Returns ErrNotHeld when the lease already expired or was taken over;
// the successor's lease stays untouched either way.
func (le *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Int()
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Refresh extends the lease by its original TTL. Long operations call it
// before the lease runs out.
// Returns ErrNotHeld when the lease already expired or was taken over.
func (le *Lease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, le.client, []string{le.key}, le.token, le.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh lock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
