// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package telephony_api is the provider-facing REST surface: the
// webhooks twilio calls back on and the endpoint that places outbound
// calls. Media never flows here; answered calls are bridged onto the
// media-stream websocket by the TwiML these handlers return.
package telephony_api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/voice/api/assistant-api/config"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_service "github.com/rapidaai/voice/api/assistant-api/internal/service"
	internal_twilio_telephony "github.com/rapidaai/voice/api/assistant-api/internal/telephony/twilio"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

const twilioSignatureHeader = "X-Twilio-Signature"

// TelephonyApi owns the twilio webhooks and outbound call placement.
type TelephonyApi struct {
	cfg    *config.AppConfig
	logger commons.Logger

	agents   internal_service.AgentService
	calls    internal_service.CallService
	provider internal_type.Telephony
}

func NewTelephonyApi(
	cfg *config.AppConfig,
	logger commons.Logger,
	database connectors.DatabaseConnector,
) *TelephonyApi {
	return &TelephonyApi{
		cfg:      cfg,
		logger:   logger,
		agents:   internal_service.NewAgentService(logger, database, &cfg.SpeechConfig),
		calls:    internal_service.NewCallService(logger, database),
		provider: internal_twilio_telephony.NewTwilioTelephony(logger, &cfg.TwilioConfig, cfg.ServerBaseUrl),
	}
}

// ============================================================================
// Inbound webhook
// ============================================================================

// InboundCall answers twilio's webhook for a ringing inbound call:
// resolve the agent for the called number, create the call row, and
// return TwiML bridging the call onto the media-stream websocket.
//
// @Router /api/v1/telephony/twilio/inbound [post]
// @Success 200 "TwiML"
func (tApi *TelephonyApi) InboundCall(c *gin.Context) {
	if !tApi.validSignature(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid twilio signature"})
		return
	}

	ctx := c.Request.Context()
	callSid := c.PostForm("CallSid")
	caller := c.PostForm("From")
	called := c.PostForm("To")

	agent := tApi.agents.ResolveInbound(ctx, called)

	call := &internal_entity.Call{
		AgentId:         agent.Id,
		Direction:       internal_entity.CallDirectionInbound,
		CallerNumber:    caller,
		ExternalCallSid: callSid,
		Status:          internal_entity.CallStatusRinging,
	}
	if err := tApi.calls.Create(ctx, call); err != nil {
		tApi.logger.Errorf("inbound call row create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create call record"})
		return
	}

	answer, err := internal_twilio_telephony.AnswerTwiml(tApi.cfg.ServerBaseUrl, agent.Id, call.Id, callSid)
	if err != nil {
		tApi.logger.Errorf("inbound answer twiml failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build answer"})
		return
	}

	tApi.logger.Infof("inbound call %s from %s routed to agent %s", callSid, caller, agent.Name)
	c.Data(http.StatusOK, "application/xml", []byte(answer))
}

// ============================================================================
// Status callback
// ============================================================================

// StatusCallback ingests twilio call progress events. Terminal statuses
// finalize the row with the raw twilio status as end reason; the call
// service drops updates for rows a session already finalized.
//
// @Router /api/v1/telephony/twilio/status [post]
// @Success 200 "OK"
func (tApi *TelephonyApi) StatusCallback(c *gin.Context) {
	if !tApi.validSignature(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid twilio signature"})
		return
	}

	ctx := c.Request.Context()
	callSid := c.PostForm("CallSid")
	rawStatus := c.PostForm("CallStatus")

	status, ok := internal_twilio_telephony.MapCallStatus(rawStatus)
	if !ok {
		tApi.logger.Warnf("ignoring unknown twilio status %q for %s", rawStatus, callSid)
		c.String(http.StatusOK, "OK")
		return
	}

	call, err := tApi.calls.GetBySid(ctx, callSid)
	if err != nil {
		tApi.logger.Warnf("status callback for unknown call %s dropped: %v", callSid, err)
		c.String(http.StatusOK, "OK")
		return
	}

	if status.IsTerminal() {
		duration, _ := strconv.ParseUint(c.PostForm("CallDuration"), 10, 64)
		if err := tApi.calls.Complete(ctx, call.Id, status, rawStatus, duration); err != nil {
			tApi.logger.Errorf("finalizing call %d from status callback failed: %v", call.Id, err)
		}
	} else {
		if err := tApi.calls.UpdateStatus(ctx, call.Id, status); err != nil {
			tApi.logger.Errorf("updating call %d from status callback failed: %v", call.Id, err)
		}
	}

	c.String(http.StatusOK, "OK")
}

// ============================================================================
// Outbound call
// ============================================================================

type outboundCallRequest struct {
	AgentId  uint64 `json:"agentId" binding:"required"`
	ToNumber string `json:"toNumber" binding:"required"`
}

// CreateOutboundCall places a call through the telephony provider. The
// row exists before the provider is asked to dial so the stream TwiML
// can carry its id.
//
// @Router /api/v1/telephony/calls [post]
// @Success 200 {object} gin.H
func (tApi *TelephonyApi) CreateOutboundCall(c *gin.Context) {
	var request outboundCallRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agentId and toNumber are required"})
		return
	}

	ctx := c.Request.Context()
	agent, err := tApi.agents.Get(ctx, request.AgentId)
	if err != nil || !agent.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	call := &internal_entity.Call{
		AgentId:      agent.Id,
		Direction:    internal_entity.CallDirectionOutbound,
		CallerNumber: request.ToNumber,
		Status:       internal_entity.CallStatusQueued,
	}
	if err := tApi.calls.Create(ctx, call); err != nil {
		tApi.logger.Errorf("outbound call row create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create call record"})
		return
	}

	callSid, err := tApi.provider.Call(ctx, request.ToNumber, agent.Id, call.Id)
	if err != nil {
		tApi.logger.Errorf("placing outbound call %d failed: %v", call.Id, err)
		if completeErr := tApi.calls.Complete(ctx, call.Id, internal_entity.CallStatusFailed,
			string(internal_type.DisconnectionTypeProvider), 0); completeErr != nil {
			tApi.logger.Warnf("marking call %d failed: %v", call.Id, completeErr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := tApi.calls.AttachSid(ctx, call.Id, callSid); err != nil {
		tApi.logger.Warnf("attaching sid %s to call %d failed: %v", callSid, call.Id, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"callId":  call.Id,
		"callSid": callSid,
		"status":  call.Status,
	})
}

// ============================================================================
// Helpers
// ============================================================================

// validSignature checks X-Twilio-Signature over the public url twilio
// signed, which is the configured base url plus the request path, not
// whatever host a proxy rewrote.
func (tApi *TelephonyApi) validSignature(c *gin.Context) bool {
	if tApi.cfg.TwilioConfig.AuthToken == "" {
		return true
	}

	if err := c.Request.ParseForm(); err != nil {
		tApi.logger.Warnf("webhook form parse failed: %v", err)
		return false
	}
	params := make(map[string]string, len(c.Request.PostForm))
	for key := range c.Request.PostForm {
		params[key] = c.Request.PostForm.Get(key)
	}

	url := tApi.cfg.ServerBaseUrl + c.Request.URL.RequestURI()
	return internal_twilio_telephony.ValidateRequest(
		tApi.cfg.TwilioConfig.AuthToken,
		url,
		params,
		c.GetHeader(twilioSignatureHeader),
	)
}
