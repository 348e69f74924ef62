// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package assistant_routers

import (
	"context"

	"github.com/gin-gonic/gin"

	knowledgeApi "github.com/rapidaai/voice/api/assistant-api/api/knowledge"
	"github.com/rapidaai/voice/api/assistant-api/config"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

// KnowledgeApiRoute registers knowledge-base and document management.
// Ingestion runs in the background under ctx, which should outlive the
// request that started it.
func KnowledgeApiRoute(
	ctx context.Context,
	cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger,
	database connectors.DatabaseConnector,
	redis connectors.RedisConnector,
	opensearch connectors.OpenSearchConnector,
) {
	kApi := knowledgeApi.NewKnowledgeApi(ctx, cfg, logger, database, redis, opensearch)
	apiv1 := engine.Group("api/v1/knowledge")
	{
		apiv1.GET("", kApi.ListBases)
		apiv1.POST("", kApi.CreateBase)
		apiv1.GET("/:id", kApi.GetBase)
		apiv1.PUT("/:id", kApi.UpdateBase)
		apiv1.DELETE("/:id", kApi.DeleteBase)

		apiv1.POST("/:id/files", kApi.UploadFile)
		apiv1.GET("/:id/files", kApi.ListFiles)
		apiv1.DELETE("/:id/files/:fileId", kApi.DeleteFile)
	}
}
