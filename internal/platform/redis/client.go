// Package redis builds the go-redis client shared by the ledger and the
// subject locks.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rwagate/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New connects and pings. An empty URL means Redis is not configured and
// yields a nil client with no error.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	applyPool(opts, cfg)

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{Client: client}, nil
}

// applyPool overrides the URL's pool settings with the non-zero ones in cfg.
func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
