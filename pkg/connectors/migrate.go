// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rapidaai/voice/pkg/commons"
)

// RunPostgresMigrations applies embedded SQL migrations from dir in
// source against the connected database. No-op when already current.
func RunPostgresMigrations(ctx context.Context, logger commons.Logger, conn DatabaseConnector, source fs.FS, dir string) error {
	sqlDb, err := conn.DB(ctx).DB()
	if err != nil {
		return fmt.Errorf("resolving sql.DB: %w", err)
	}

	src, err := iofs.New(source, dir)
	if err != nil {
		return fmt.Errorf("loading migration source: %w", err)
	}
	driver, err := migratepostgres.WithInstance(sqlDb, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Infow("schema already current")
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Infow("schema migrated", "version", version, "dirty", dirty)
	return nil
}
