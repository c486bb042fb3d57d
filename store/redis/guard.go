package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/hupe1980/metaexpert/core"
)

// releaseScript deletes the lock only when it still holds our token.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Guard is a distributed run guard. A held run id is rejected immediately
// with core.ErrRunInProgress rather than waited on.
type Guard struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewGuard creates a Guard whose locks expire after ttl so a crashed holder
// cannot block a run id forever.
func NewGuard(client *backend.Client, ttl time.Duration, opts ...Option) *Guard {
	s := apply(opts)
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Guard{client: client, prefix: s.prefix + "run:", ttl: ttl}
}

// Acquire claims runID using SET NX PX.
func (g *Guard) Acquire(ctx context.Context, runID string) (func(), error) {
	key := g.prefix + runID
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error acquiring run guard: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrRunInProgress, runID)
	}

	return func() {
		// release must work after the run's context was cancelled
		_ = g.client.Eval(context.WithoutCancel(ctx), releaseScript, []string{key}, token).Err()
	}, nil
}
