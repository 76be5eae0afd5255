// Package lease is the Redis-backed claim coordinator that resolves Open
// Question 1 (SPEC_FULL §4.5): a Feeder that crashes while a node is
// IN_PROGRESS leaves it unreclaimable by the base protocol. A lease records
// which worker holds a node and for how long, and a reaper can reclaim
// expired leases.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when another worker already holds a live
// lease for the node.
var ErrHeld = errors.New("lease: held by another worker")

// DefaultTTL bounds how long a Feeder may hold a node before it is
// considered crashed and reclaimable.
const DefaultTTL = 2 * time.Minute

// Coordinator manages node leases in Redis. A nil *Coordinator is valid and
// makes every operation a no-op (Expired reports true for every node), so
// the lease layer is entirely optional
// (spec §6: LEASE_REDIS_ADDR empty means "no lease, baseline behavior").
type Coordinator struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Coordinator against the given Redis address.
func New(addr string, ttl time.Duration) *Coordinator {
	if addr == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Coordinator{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func key(nodeID string) string {
	return "lease:" + nodeID
}

// Acquire takes the lease for nodeID on behalf of workerID. Returns ErrHeld
// if another worker's lease has not yet expired.
func (c *Coordinator) Acquire(ctx context.Context, nodeID, workerID string) error {
	if c == nil {
		return nil
	}
	ok, err := c.client.SetNX(ctx, key(nodeID), workerID, c.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

// Renew extends the TTL on a lease this worker still holds, returning ErrHeld
// if the lease is gone or held by another worker. The Feeder does not call
// it: a lease taken in process is not extended while the node is worked.
func (c *Coordinator) Renew(ctx context.Context, nodeID, workerID string) error {
	if c == nil {
		return nil
	}
	holder, err := c.client.Get(ctx, key(nodeID)).Result()
	if err == redis.Nil {
		return ErrHeld
	}
	if err != nil {
		return err
	}
	if holder != workerID {
		return ErrHeld
	}
	return c.client.Expire(ctx, key(nodeID), c.ttl).Err()
}

// Release drops the lease after the node reaches a terminal status or is
// returned to PENDING for retry.
func (c *Coordinator) Release(ctx context.Context, nodeID, workerID string) error {
	if c == nil {
		return nil
	}
	holder, err := c.client.Get(ctx, key(nodeID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if holder != workerID {
		return nil
	}
	return c.client.Del(ctx, key(nodeID)).Err()
}

// Expired reports whether nodeID currently has no live lease, meaning a
// reaper may reset it from IN_PROGRESS back to PENDING.
func (c *Coordinator) Expired(ctx context.Context, nodeID string) (bool, error) {
	if c == nil {
		return true, nil
	}
	n, err := c.client.Exists(ctx, key(nodeID)).Result()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Ping is the lease coordinator's contribution to the adapter's
// health_check operation (spec §4.1).
func (c *Coordinator) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying Redis client.
func (c *Coordinator) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
