// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Command assistant-api runs the voice assistant service: realtime talk
// websockets, twilio webhooks, knowledge management, and call
// inspection, all on one http listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/voice/api/assistant-api/config"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_migrations "github.com/rapidaai/voice/api/assistant-api/internal/migrations"
	assistant_routers "github.com/rapidaai/voice/api/assistant-api/router"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
	"github.com/rapidaai/voice/pkg/utils"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("reading config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := commons.NewApplicationLogger()
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorf("assistant-api exited: %v", err)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger commons.Logger) error {
	database, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	// redis is a cache only; the service degrades without it.
	redis, err := connectors.NewRedisConnector(logger, &cfg.RedisConfig)
	if err != nil {
		logger.Warnf("redis unavailable, caching disabled: %v", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	var opensearch connectors.OpenSearchConnector
	if cfg.VectorStoreConfig.Provider == "opensearch" {
		opensearch, err = connectors.NewOpenSearchConnector(logger, &cfg.VectorStoreConfig.Opensearch)
		if err != nil {
			return fmt.Errorf("connecting opensearch: %w", err)
		}
	}

	engine := newEngine(cfg)
	assistant_routers.HealthCheckRoutes(cfg, engine, logger, database)
	assistant_routers.TalkApiRoute(cfg, engine, logger, database, redis, opensearch)
	assistant_routers.TelephonyApiRoute(cfg, engine, logger, database)
	assistant_routers.CallApiRoute(cfg, engine, logger, database)
	assistant_routers.KnowledgeApiRoute(ctx, cfg, engine, logger, database, redis, opensearch)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infow("assistant-api listening", "address", server.Addr, "version", cfg.Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Infow("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func openDatabase(ctx context.Context, cfg *config.AppConfig, logger commons.Logger) (connectors.DatabaseConnector, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		database, err := connectors.NewPostgresConnector(logger, &cfg.PostgresConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting postgres: %w", err)
		}
		if err := connectors.RunPostgresMigrations(ctx, logger, database, internal_migrations.FS, internal_migrations.Dir); err != nil {
			return nil, err
		}
		return database, nil
	default:
		database, err := connectors.NewSqliteConnector(logger, cfg.SqlitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		// sqlite skips the sql migration history; gorm derives the schema.
		if err := database.DB(ctx).AutoMigrate(
			&internal_entity.Agent{},
			&internal_entity.Call{},
			&internal_entity.TranscriptEntry{},
			&internal_entity.FunctionCallLog{},
			&internal_entity.CustomFunction{},
			&internal_entity.KnowledgeBase{},
			&internal_entity.KnowledgeBaseFile{},
			&internal_entity.PhoneNumber{},
			&internal_entity.SystemPrompt{},
		); err != nil {
			return nil, fmt.Errorf("migrating sqlite schema: %w", err)
		}
		return database, nil
	}
}

func newEngine(cfg *config.AppConfig) *gin.Engine {
	if utils.FromEnvironmentStr(os.Getenv("ENVIRONMENT")) == utils.PRODUCTION {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))
	return engine
}
