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

	"github.com/go-gorm/caches/v4"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/redis/go-redis/v9"
)

const queryCacheTtl = time.Minute

// redisCacher backs the gorm query cache. Agent and phone number
// lookups happen on every call setup, caching keeps them off the
// database during bursts.
type redisCacher struct {
	rdb *redis.Client
}

func NewRedisCacher(rdb *redis.Client) caches.Cacher {
	return &redisCacher{rdb: rdb}
}

func (c *redisCacher) Get(ctx context.Context, key string, q *caches.Query[any]) (*caches.Query[any], error) {
	res, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := q.Unmarshal([]byte(res)); err != nil {
		return nil, err
	}
	return q, nil
}

func (c *redisCacher) Store(ctx context.Context, key string, val *caches.Query[any]) error {
	res, err := val.Marshal()
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, res, queryCacheTtl).Err()
}

func (c *redisCacher) Invalidate(ctx context.Context) error {
	var (
		cursor uint64
		keys   []string
	)
	for {
		k, next, err := c.rdb.Scan(ctx, cursor, fmt.Sprintf("%s*", caches.IdentifierPrefix), 0).Result()
		if err != nil {
			return err
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) > 0 {
		return c.rdb.Del(ctx, keys...).Err()
	}
	return nil
}

// UseQueryCache installs the caches plugin on the database with the
// redis backend. Easer collapses duplicate in-flight queries.
func UseQueryCache(logger commons.Logger, db DatabaseConnector, rdb RedisConnector) error {
	if err := db.DB(context.Background()).Use(&caches.Caches{Conf: &caches.Config{
		Easer:  true,
		Cacher: NewRedisCacher(rdb.Client()),
	}}); err != nil {
		return fmt.Errorf("installing query cache: %w", err)
	}
	logger.Infow("gorm query cache enabled", "ttl", queryCacheTtl)
	return nil
}
