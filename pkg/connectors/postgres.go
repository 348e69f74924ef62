// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"fmt"

	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/configs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewPostgresConnector opens the primary relational store with pool
// limits from config.
func NewPostgresConnector(logger commons.Logger, cfg *configs.PostgresConfig) (DatabaseConnector, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetConnectionString()), &gorm.Config{
		Logger: NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	sqlDb, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolving sql.DB: %w", err)
	}
	if cfg.MaxOpenConnection > 0 {
		sqlDb.SetMaxOpenConns(cfg.MaxOpenConnection)
	}
	if cfg.MaxIdealConnection > 0 {
		sqlDb.SetMaxIdleConns(cfg.MaxIdealConnection)
	}

	if err := sqlDb.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	logger.Infow("postgres connected", "host", cfg.Host, "database", cfg.DbName)
	return &gormConnector{db: db}, nil
}
