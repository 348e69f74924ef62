// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package assistant_talk_api exposes the realtime conversation
// endpoints: one websocket per channel, each resolving an agent and a
// call row before handing the connection to a talker.
package assistant_talk_api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rapidaai/voice/api/assistant-api/config"
	internal_adapter "github.com/rapidaai/voice/api/assistant-api/internal/adapters"
	channel_browser "github.com/rapidaai/voice/api/assistant-api/internal/channel/browser"
	channel_telephony "github.com/rapidaai/voice/api/assistant-api/internal/channel/telephony"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_service "github.com/rapidaai/voice/api/assistant-api/internal/service"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

var talkUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ConversationApi owns the websocket talk surface.
type ConversationApi struct {
	cfg        *config.AppConfig
	logger     commons.Logger
	database   connectors.DatabaseConnector
	redis      connectors.RedisConnector
	opensearch connectors.OpenSearchConnector

	agents internal_service.AgentService
	calls  internal_service.CallService
}

func NewConversationApi(
	cfg *config.AppConfig,
	logger commons.Logger,
	database connectors.DatabaseConnector,
	redis connectors.RedisConnector,
	opensearch connectors.OpenSearchConnector,
) *ConversationApi {
	return &ConversationApi{
		cfg:        cfg,
		logger:     logger,
		database:   database,
		redis:      redis,
		opensearch: opensearch,
		agents:     internal_service.NewAgentService(logger, database, &cfg.SpeechConfig),
		calls:      internal_service.NewCallService(logger, database),
	}
}

// ============================================================================
// Browser channel
// ============================================================================

// BrowserTalker runs one browser voice session.
//
// @Router /ws/voice [get]
// @Param agent_id query uint64 false "Agent to talk to; default agent when absent"
// @Param call_id query uint64 false "Existing call row to resume"
// @Success 101 "Switching Protocols"
func (cApi *ConversationApi) BrowserTalker(c *gin.Context) {
	conn, err := talkUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cApi.logger.Errorf("browser ws upgrade failed: %v", err)
		return
	}

	ctx := c.Request.Context()
	agent := cApi.agents.GetOrDefault(ctx, queryUint(c, "agent_id"))
	call := cApi.resolveBrowserCall(ctx, c, agent)

	streamer, err := channel_browser.NewBrowserStreamer(ctx, cApi.logger, conn)
	if err != nil {
		cApi.logger.Errorf("browser streamer setup failed: %v", err)
		conn.Close()
		return
	}

	talker, err := internal_adapter.GetTalker(ctx,
		cApi.cfg, cApi.logger,
		cApi.database, cApi.redis, cApi.opensearch,
		streamer, agent, call,
		internal_adapter.WithEndReason("browser_disconnect"),
	)
	if err != nil {
		cApi.logger.Errorf("browser conversation setup failed: %v", err)
		streamer.Close()
		return
	}

	if err := talker.Talk(ctx); err != nil {
		cApi.logger.Errorf("browser conversation for call %d ended with error: %v", call.Id, err)
	}
}

// resolveBrowserCall reuses the row a reconnecting client names, as long
// as it is still open, and creates a fresh one otherwise. A failed
// create leaves Id zero and the session runs unpersisted.
func (cApi *ConversationApi) resolveBrowserCall(ctx context.Context, c *gin.Context, agent *internal_entity.Agent) *internal_entity.Call {
	if id := queryUint(c, "call_id"); id != 0 {
		call, err := cApi.calls.Get(ctx, id)
		if err == nil && !call.Status.IsTerminal() {
			return call
		}
		cApi.logger.Warnf("browser call %d not reusable, creating a fresh row", id)
	}

	call := &internal_entity.Call{
		AgentId:   agent.Id,
		Direction: internal_entity.CallDirectionBrowser,
		Status:    internal_entity.CallStatusConnecting,
	}
	if err := cApi.calls.Create(ctx, call); err != nil {
		cApi.logger.Errorf("browser call row create failed, session runs unpersisted: %v", err)
	}
	return call
}

// ============================================================================
// Twilio media-stream channel
// ============================================================================

// TwilioTalker runs one telephony voice session over a Twilio media
// stream. The start frame is consumed before the session exists, so the
// call row is matched here rather than by the session's metadata path.
//
// @Router /ws/voice-twilio [get]
// @Success 101 "Switching Protocols"
func (cApi *ConversationApi) TwilioTalker(c *gin.Context) {
	conn, err := talkUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cApi.logger.Errorf("twilio ws upgrade failed: %v", err)
		return
	}

	start, err := channel_telephony.ReadStart(conn)
	if err != nil {
		cApi.logger.Errorf("twilio media stream handshake failed: %v", err)
		conn.Close()
		return
	}

	ctx := c.Request.Context()
	call := cApi.resolveTwilioCall(ctx, c, start)
	agent := cApi.agents.GetOrDefault(ctx, call.AgentId)

	streamer, err := channel_telephony.NewTwilioStreamer(ctx, cApi.logger, conn, agent, call, start.StreamSid)
	if err != nil {
		cApi.logger.Errorf("twilio streamer setup failed: %v", err)
		conn.Close()
		return
	}

	talker, err := internal_adapter.GetTalker(ctx,
		cApi.cfg, cApi.logger,
		cApi.database, cApi.redis, cApi.opensearch,
		streamer, agent, call,
		internal_adapter.WithEndReason("twilio_disconnect"),
	)
	if err != nil {
		cApi.logger.Errorf("twilio conversation setup failed: %v", err)
		streamer.Close()
		return
	}

	if err := talker.Talk(ctx); err != nil {
		cApi.logger.Errorf("twilio conversation for call %d ended with error: %v", call.Id, err)
	}
}

// resolveTwilioCall matches a media stream to its call row: first by the
// provider sid the webhook stored, then by the call_id the stream url
// carries. An unmatched stream still gets a row so the transcript lands
// somewhere.
func (cApi *ConversationApi) resolveTwilioCall(ctx context.Context, c *gin.Context, start *channel_telephony.StartEvent) *internal_entity.Call {
	if start.CallSid != "" {
		if call, err := cApi.calls.GetBySid(ctx, start.CallSid); err == nil {
			return call
		}
	}

	if id := queryUint(c, "call_id"); id != 0 {
		if call, err := cApi.calls.Get(ctx, id); err == nil {
			if call.ExternalCallSid == "" && start.CallSid != "" {
				if err := cApi.calls.AttachSid(ctx, call.Id, start.CallSid); err == nil {
					call.ExternalCallSid = start.CallSid
				}
			}
			return call
		}
	}

	cApi.logger.Warnf("no call row matched sid %q, creating one", start.CallSid)
	call := &internal_entity.Call{
		AgentId:         queryUint(c, "agent_id"),
		Direction:       internal_entity.CallDirectionInbound,
		ExternalCallSid: start.CallSid,
		Status:          internal_entity.CallStatusInProgress,
	}
	if err := cApi.calls.Create(ctx, call); err != nil {
		cApi.logger.Errorf("twilio call row create failed, session runs unpersisted: %v", err)
	}
	return call
}

// ============================================================================
// Helpers
// ============================================================================

func queryUint(c *gin.Context, key string) uint64 {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
