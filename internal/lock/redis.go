package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/evident-labs/evidcore/internal/errs"
)

// redisUnlockScript deletes the lock key only if it still holds the token
// this holder set, so a holder can never release a lock it no longer owns
// (e.g. after its lease expired and another node acquired it).
var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

// Redis implements Manager as a distributed lock for the multi-node
// deployment named in §5, using SET NX EX for acquisition and a
// compare-and-delete script for release.
type Redis struct {
	client     *redis.Client
	lease      time.Duration
	retryDelay time.Duration
}

// NewRedis builds a Redis-backed Manager against addr.
func NewRedis(addr string) *Redis {
	return &Redis{
		client:     redis.NewClient(&redis.Options{Addr: addr}),
		lease:      30 * time.Second,
		retryDelay: 25 * time.Millisecond,
	}
}

// Lock blocks (polling at retryDelay) until the distributed lock for key is
// acquired or ctx is cancelled.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := "evidcore:manifest-lock:" + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.lease).Result()
		if err != nil {
			return nil, errs.Wrap(errs.KindStoreUnavailable, "redis lock acquire", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.KindStoreUnavailable, "redis lock acquire", ctx.Err())
		case <-time.After(r.retryDelay):
		}
	}

	unlock := func() {
		// Best-effort: on failure the lease simply expires after r.lease.
		_ = redisUnlockScript.Run(context.Background(), r.client, []string{redisKey}, token).Err()
	}
	return unlock, nil
}
