//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"rwagate/internal/platform/config"
	redisplatform "rwagate/internal/platform/redis"
)

// RedisContainer is a Redis instance reached through the same client the
// daemon uses.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis connection string: %v", err)
	}
	client, err := redisplatform.New(ctx, config.RedisConfig{URL: url, PoolSize: 4})
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &RedisContainer{Container: container, URL: url, Client: client.Client}
}

// FlushAll empties the instance between subtests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
