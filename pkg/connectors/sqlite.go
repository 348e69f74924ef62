// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"fmt"

	"github.com/rapidaai/voice/pkg/commons"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSqliteConnector opens an embedded sqlite database for single-binary
// deployments. Schema is created through gorm auto-migration by the caller;
// the SQL migration files target postgres only.
func NewSqliteConnector(logger commons.Logger, path string) (DatabaseConnector, error) {
	if path == "" {
		path = "voice.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	logger.Infow("sqlite connected", "path", path)
	return &gormConnector{db: db}, nil
}
