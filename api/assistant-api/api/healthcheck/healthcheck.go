// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package healthcheck_api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/voice/api/assistant-api/config"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

type HealthCheckApi struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	database connectors.DatabaseConnector
}

func New(cfg *config.AppConfig, logger commons.Logger, database connectors.DatabaseConnector) *HealthCheckApi {
	return &HealthCheckApi{cfg: cfg, logger: logger, database: database}
}

// Healthz reports process liveness only.
func (hApi *HealthCheckApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": hApi.cfg.Name,
		"version": hApi.cfg.Version,
	})
}

// Readiness additionally verifies the relational store is reachable.
func (hApi *HealthCheckApi) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := hApi.database.Ping(ctx); err != nil {
		hApi.logger.Errorf("readiness database ping failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
