// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package connectors

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tetraops/callstream/pkg/commons"
)

// RedisConnector hands out the shared Redis client the tracer publishes
// through.
type RedisConnector interface {
	Client() redis.UniversalClient
	Close() error
}

type redisConnector struct {
	client redis.UniversalClient
	logger commons.Logger
}

// NewRedisConnector connects to the address configured as the JSON
// publisher endpoint.
func NewRedisConnector(addr string, logger commons.Logger) (RedisConnector, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}
	logger.Info("redis connection established", "addr", addr)
	return &redisConnector{client: client, logger: logger}, nil
}

// WrapRedis adapts an already-open client (tests use this with redismock).
func WrapRedis(client redis.UniversalClient, logger commons.Logger) RedisConnector {
	return &redisConnector{client: client, logger: logger}
}

func (c *redisConnector) Client() redis.UniversalClient { return c.client }

func (c *redisConnector) Close() error { return c.client.Close() }
