// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DatabaseConnector hands out request-scoped gorm handles over the
// relational store. Backed by postgres in production and sqlite for
// local single-binary runs.
type DatabaseConnector interface {
	DB(ctx context.Context) *gorm.DB
	Ping(ctx context.Context) error
	Close() error
}

type RedisConnector interface {
	Client() *redis.Client
	Ping(ctx context.Context) error
	Close() error
}

type OpenSearchConnector interface {
	Client() *opensearch.Client
}

// gormConnector is the shared DatabaseConnector implementation; the
// driver difference is entirely inside gorm.Open.
type gormConnector struct {
	db *gorm.DB
}

func (c *gormConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *gormConnector) Ping(ctx context.Context) error {
	sqlDb, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.PingContext(ctx)
}

func (c *gormConnector) Close() error {
	sqlDb, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}
