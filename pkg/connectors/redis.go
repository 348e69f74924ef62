// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/configs"
	"github.com/redis/go-redis/v9"
)

type redisConnector struct {
	client *redis.Client
}

// NewRedisConnector dials redis and verifies the connection before
// returning. Redis backs the embedding cache and gorm query cache.
func NewRedisConnector(logger commons.Logger, cfg *configs.RedisConfig) (RedisConnector, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddress(),
		Password: cfg.Password,
		DB:       cfg.Db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.GetAddress(), err)
	}
	logger.Infow("redis connected", "address", cfg.GetAddress(), "db", cfg.Db)
	return &redisConnector{client: client}, nil
}

func (c *redisConnector) Client() *redis.Client {
	return c.client
}

func (c *redisConnector) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisConnector) Close() error {
	return c.client.Close()
}
