// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_twilio_telephony

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilio_client "github.com/twilio/twilio-go/client"
	twilio_api "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/configs"
)

// StatusCallbackPath is where twilio posts call progress events. The
// telephony router mounts its status handler on the same path.
const StatusCallbackPath = "/api/v1/telephony/twilio/status"

// statusCallbackEvents are the call progress events twilio reports for
// outbound calls placed through the rest api.
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

type twilioTelephony struct {
	logger  commons.Logger
	cfg     *configs.TwilioConfig
	baseUrl string
	client  *twilio.RestClient
}

// NewTwilioTelephony builds the twilio provider. serverBaseUrl is the
// public address twilio can reach back on for media streams and status
// callbacks; credentials may be empty, in which case outbound operations
// fail without touching the network.
func NewTwilioTelephony(
	logger commons.Logger,
	cfg *configs.TwilioConfig,
	serverBaseUrl string,
) internal_type.Telephony {
	tpc := &twilioTelephony{
		logger:  logger,
		cfg:     cfg,
		baseUrl: strings.TrimRight(serverBaseUrl, "/"),
	}
	if cfg != nil {
		tpc.client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSid,
			Password: cfg.AuthToken,
		})
	}
	return tpc
}

func (tpc *twilioTelephony) Name() string {
	return "twilio"
}

// Call places an outbound call. The call row must already exist; its id
// rides the stream url so the media handler can resolve it before the
// start frame arrives. Returns the twilio CallSid.
func (tpc *twilioTelephony) Call(ctx context.Context, toNumber string, agentId uint64, callId uint64) (string, error) {
	if tpc.cfg == nil || !tpc.cfg.IsConfigured() {
		return "", fmt.Errorf("twilio: telephony is not configured")
	}
	if tpc.cfg.PhoneNumber == "" {
		return "", fmt.Errorf("twilio: no outbound phone number configured")
	}

	answer, err := AnswerTwiml(tpc.baseUrl, agentId, callId, "")
	if err != nil {
		return "", fmt.Errorf("twilio: build answer twiml: %w", err)
	}

	params := &twilio_api.CreateCallParams{}
	params.SetTo(toNumber)
	params.SetFrom(tpc.cfg.PhoneNumber)
	params.SetTwiml(answer)
	params.SetStatusCallback(tpc.baseUrl + StatusCallbackPath)
	params.SetStatusCallbackEvent(statusCallbackEvents)

	resp, err := tpc.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio: create call to %s: %w", toNumber, err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("twilio: create call returned no sid")
	}

	tpc.logger.Infof("twilio call %s placed to %s for call %d", *resp.Sid, toNumber, callId)
	return *resp.Sid, nil
}

// Transfer redirects a live call to another number by swapping its twiml.
func (tpc *twilioTelephony) Transfer(ctx context.Context, providerCallId string, toNumber string) error {
	if tpc.cfg == nil || !tpc.cfg.IsConfigured() {
		return fmt.Errorf("twilio: telephony is not configured")
	}

	redirect, err := transferTwiml(toNumber)
	if err != nil {
		return fmt.Errorf("twilio: build transfer twiml: %w", err)
	}

	params := &twilio_api.UpdateCallParams{}
	params.SetTwiml(redirect)
	if _, err := tpc.client.Api.UpdateCall(providerCallId, params); err != nil {
		return fmt.Errorf("twilio: transfer call %s: %w", providerCallId, err)
	}

	tpc.logger.Infof("twilio call %s transferred to %s", providerCallId, toNumber)
	return nil
}

// Hangup terminates a live call.
func (tpc *twilioTelephony) Hangup(ctx context.Context, providerCallId string) error {
	if tpc.cfg == nil || !tpc.cfg.IsConfigured() {
		return fmt.Errorf("twilio: telephony is not configured")
	}

	params := &twilio_api.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := tpc.client.Api.UpdateCall(providerCallId, params); err != nil {
		return fmt.Errorf("twilio: hangup call %s: %w", providerCallId, err)
	}
	return nil
}

// ============================================================================
// TwiML
// ============================================================================

// StreamUrl is the websocket address twilio should bridge the call media
// onto, derived from the public base url.
func StreamUrl(serverBaseUrl string, agentId uint64, callId uint64) string {
	base := strings.TrimRight(serverBaseUrl, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/" + internal_type.GetAnswerPrefix(agentId, callId)
}

// AnswerTwiml connects an answered call to the media-stream websocket.
// The inbound webhook forwards the CallSid it already has as a custom
// parameter; outbound calls leave it empty and rely on the sid twilio
// itself puts on the stream's start frame.
func AnswerTwiml(serverBaseUrl string, agentId uint64, callId uint64, callSid string) (string, error) {
	stream := &twiml.VoiceStream{
		Url: StreamUrl(serverBaseUrl, agentId, callId),
	}
	if callSid != "" {
		stream.InnerElements = []twiml.Element{
			&twiml.VoiceParameter{Name: "callSid", Value: callSid},
		}
	}
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceConnect{InnerElements: []twiml.Element{stream}},
	})
}

func transferTwiml(toNumber string) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceDial{Number: toNumber},
	})
}

// ============================================================================
// Webhook helpers
// ============================================================================

// MapCallStatus converts a twilio CallStatus value into the internal call
// status vocabulary. The second return is false for values the webhook
// should ignore.
func MapCallStatus(status string) (internal_entity.CallStatus, bool) {
	switch status {
	case "queued":
		return internal_entity.CallStatusQueued, true
	case "initiated":
		return internal_entity.CallStatusConnecting, true
	case "ringing":
		return internal_entity.CallStatusRinging, true
	case "in-progress", "answered":
		return internal_entity.CallStatusInProgress, true
	case "completed":
		return internal_entity.CallStatusCompleted, true
	case "busy", "failed", "no-answer", "canceled":
		return internal_entity.CallStatusFailed, true
	default:
		return "", false
	}
}

// ValidateRequest checks the X-Twilio-Signature header of a webhook
// against the configured auth token. Deployments without a token skip
// validation so local tunnels keep working.
func ValidateRequest(authToken string, url string, params map[string]string, signature string) bool {
	if authToken == "" {
		return true
	}
	validator := twilio_client.NewRequestValidator(authToken)
	return validator.Validate(url, params, signature)
}
