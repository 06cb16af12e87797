package subjectlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock only if this holder still owns it.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a distributed keyed lock (SET NX PX with an owner token) for
// deployments running several gateway replicas.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

type RedisOption func(*Redis)

// WithTTL bounds how long a crashed holder can block a subject. A live holder
// keeps renewing the lock every third of the TTL, so guarded sections may run
// longer than it.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retry = d
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	r := &Redis{
		client: client,
		prefix: "rwagate:lock:",
		ttl:    30 * time.Second,
		retry:  25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go r.keepAlive(lockKey, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			// Release on a fresh context: the caller's may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, r.client, []string{lockKey}, token).Err()
		})
	}, nil
}

// keepAlive re-arms the TTL while the holder runs. It gives up once the key
// belongs to someone else; transient errors are retried on the next tick.
func (r *Redis) keepAlive(lockKey, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	interval := r.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		held, err := renewScript.Run(ctx, r.client, []string{lockKey}, token, r.ttl.Milliseconds()).Int()
		cancel()
		if err == nil && held == 0 {
			return
		}
	}
}
