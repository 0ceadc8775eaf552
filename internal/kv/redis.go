package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/torosent/kvbench/internal/endpoint"
)

// RedisDialer dials one dedicated single-connection client per call.
type RedisDialer struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Dial connects and authenticates eagerly so the caller can time it.
func (d RedisDialer) Dial(ctx context.Context, ep endpoint.Descriptor) (Conn, error) {
	client := redis.NewClient(&redis.Options{
		Addr:                  ep.Addr(),
		Password:              ep.Credential,
		Protocol:              2,
		PoolSize:              1,
		MaxRetries:            -1,
		DialTimeout:           d.DialTimeout,
		ReadTimeout:           d.ReadTimeout,
		WriteTimeout:          d.WriteTimeout,
		ContextTimeoutEnabled: true,
		DisableIndentity:      true,
	})
	// go-redis dials lazily; PING forces the dial and the AUTH handshake.
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &ConnectError{Addr: ep.Addr(), Err: err}
	}
	return &redisConn{client: client}, nil
}

type redisConn struct {
	client *redis.Client
}

func (c *redisConn) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *redisConn) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *redisConn) Info(ctx context.Context) (Snapshot, error) {
	raw, err := c.client.Info(ctx).Result()
	if err != nil {
		return nil, err
	}
	return ParseInfo(raw), nil
}

func (c *redisConn) Close() error {
	return c.client.Close()
}
