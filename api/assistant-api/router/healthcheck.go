// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package assistant_routers

import (
	"github.com/gin-gonic/gin"

	healthCheckApi "github.com/rapidaai/voice/api/assistant-api/api/healthcheck"
	"github.com/rapidaai/voice/api/assistant-api/config"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, database connectors.DatabaseConnector) {
	apiv1 := engine.Group("")
	hcApi := healthCheckApi.New(cfg, logger, database)
	{
		apiv1.GET("/readiness/", hcApi.Readiness)
		apiv1.GET("/healthz/", hcApi.Healthz)
		apiv1.GET("/api/v1/health", hcApi.Healthz)
	}
}
