// Package redis persists pattern-store snapshots for warm starts across
// runs. Persistence is an opt-in extension; the engine never depends on
// it and degrades to in-memory learning without it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flakeproof/flakeproof/internal/resilience/learn"
)

// Client wraps Redis operations for snapshot storage.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client and verifies the connection.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func snapshotKey(name string) string {
	return fmt.Sprintf("flakeproof:patterns:%s", name)
}

// SaveSnapshot stores snap under name, replacing any previous snapshot.
func (c *Client) SaveSnapshot(ctx context.Context, name string, snap learn.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, snapshotKey(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot fetches the snapshot stored under name. found is false
// when none exists.
func (c *Client) LoadSnapshot(ctx context.Context, name string) (snap learn.Snapshot, found bool, err error) {
	data, err := c.rdb.Get(ctx, snapshotKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return learn.Snapshot{}, false, nil
	}
	if err != nil {
		return learn.Snapshot{}, false, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return learn.Snapshot{}, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, true, nil
}
