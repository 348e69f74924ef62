// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package assistant_routers mounts the assistant surfaces on the gin
// engine: realtime talk websockets, telephony webhooks, and call
// management.
package assistant_routers

import (
	"github.com/gin-gonic/gin"

	callApi "github.com/rapidaai/voice/api/assistant-api/api/call"
	talkApi "github.com/rapidaai/voice/api/assistant-api/api/talk"
	telephonyApi "github.com/rapidaai/voice/api/assistant-api/api/telephony"
	"github.com/rapidaai/voice/api/assistant-api/config"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

// TalkApiRoute registers the realtime voice websockets. Each upgrade
// resolves an agent plus a call row and then runs a full conversation
// session on the connection.
func TalkApiRoute(
	cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger,
	database connectors.DatabaseConnector,
	redis connectors.RedisConnector,
	opensearch connectors.OpenSearchConnector,
) {
	conversationApi := talkApi.NewConversationApi(cfg,
		logger,
		database,
		redis,
		opensearch,
	)
	{
		// browser: binary PCM16@16k frames both ways
		engine.GET("/ws/voice", conversationApi.BrowserTalker)
		// twilio media stream: base64 mulaw@8k json frames
		engine.GET("/ws/voice-twilio", conversationApi.TwilioTalker)
	}
}

// TelephonyApiRoute registers the twilio webhooks and the outbound-call
// endpoint.
func TelephonyApiRoute(
	cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger,
	database connectors.DatabaseConnector,
) {
	tApi := telephonyApi.NewTelephonyApi(cfg, logger, database)
	apiv1 := engine.Group("api/v1/telephony")
	{
		apiv1.POST("/twilio/inbound", tApi.InboundCall)
		apiv1.POST("/twilio/status", tApi.StatusCallback)
		apiv1.POST("/calls", tApi.CreateOutboundCall)
	}
}

// CallApiRoute registers call inspection and deletion.
func CallApiRoute(
	cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger,
	database connectors.DatabaseConnector,
) {
	cApi := callApi.NewCallApi(logger, database)
	apiv1 := engine.Group("api/v1/calls")
	{
		apiv1.GET("", cApi.List)
		apiv1.GET("/:callId", cApi.Get)
		apiv1.GET("/:callId/transcript", cApi.Transcript)
		apiv1.DELETE("/:callId", cApi.Delete)
	}
}
