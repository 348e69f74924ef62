// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_twilio_telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"testing"

	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Stream url and TwiML
// ============================================================================

func TestStreamUrlSwapsSchemeForWebsocket(t *testing.T) {
	assert.Equal(t,
		"wss://voice.example.com/ws/voice-twilio?agent_id=7&call_id=42",
		StreamUrl("https://voice.example.com/", 7, 42))
	assert.Equal(t,
		"ws://localhost:8080/ws/voice-twilio?agent_id=1&call_id=2",
		StreamUrl("http://localhost:8080", 1, 2))
}

func TestAnswerTwimlConnectsTheMediaStream(t *testing.T) {
	answer, err := AnswerTwiml("https://voice.example.com", 7, 42, "CA12345")
	require.NoError(t, err)

	assert.Contains(t, answer, "<Connect>")
	// the query separator must survive xml attribute escaping
	assert.Contains(t, answer, `url="wss://voice.example.com/ws/voice-twilio?agent_id=7&amp;call_id=42"`)
	assert.Contains(t, answer, `name="callSid"`)
	assert.Contains(t, answer, `value="CA12345"`)
}

func TestAnswerTwimlOmitsParameterWithoutCallSid(t *testing.T) {
	answer, err := AnswerTwiml("https://voice.example.com", 7, 42, "")
	require.NoError(t, err)

	assert.Contains(t, answer, "<Connect>")
	assert.NotContains(t, answer, "<Parameter")
}

func TestTransferTwimlDialsTheNumber(t *testing.T) {
	redirect, err := transferTwiml("+15550100")
	require.NoError(t, err)

	assert.Contains(t, redirect, "<Dial>+15550100</Dial>")
}

// ============================================================================
// Status mapping
// ============================================================================

func TestMapCallStatusCoversTwilioVocabulary(t *testing.T) {
	cases := []struct {
		twilio   string
		status   internal_entity.CallStatus
		terminal bool
	}{
		{"queued", internal_entity.CallStatusQueued, false},
		{"initiated", internal_entity.CallStatusConnecting, false},
		{"ringing", internal_entity.CallStatusRinging, false},
		{"in-progress", internal_entity.CallStatusInProgress, false},
		{"answered", internal_entity.CallStatusInProgress, false},
		{"completed", internal_entity.CallStatusCompleted, true},
		{"busy", internal_entity.CallStatusFailed, true},
		{"failed", internal_entity.CallStatusFailed, true},
		{"no-answer", internal_entity.CallStatusFailed, true},
		{"canceled", internal_entity.CallStatusFailed, true},
	}

	for _, tc := range cases {
		mapped, ok := MapCallStatus(tc.twilio)
		require.True(t, ok, "twilio status %q should map", tc.twilio)
		assert.Equal(t, tc.status, mapped, "twilio status %q", tc.twilio)
		assert.Equal(t, tc.terminal, mapped.IsTerminal(), "twilio status %q", tc.twilio)
	}

	_, ok := MapCallStatus("something-new")
	assert.False(t, ok)
}

// ============================================================================
// Signature validation
// ============================================================================

// twilioSignature derives the expected X-Twilio-Signature the documented
// way: sort the form keys, append each key and value to the url, then
// hmac-sha1 the result with the auth token.
func twilioSignature(authToken string, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	payload := url
	for _, key := range keys {
		payload += key + params[key]
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateRequestHonorsSignature(t *testing.T) {
	url := "https://voice.example.com/api/v1/telephony/twilio/status"
	params := map[string]string{
		"CallSid":    "CA12345",
		"CallStatus": "completed",
	}
	signature := twilioSignature("token-123", url, params)

	assert.True(t, ValidateRequest("token-123", url, params, signature))
	assert.False(t, ValidateRequest("token-123", url, params, "bogus"))
	assert.False(t, ValidateRequest("other-token", url, params, signature))
}

func TestValidateRequestSkipsWithoutAuthToken(t *testing.T) {
	assert.True(t, ValidateRequest("", "https://anywhere", nil, "whatever"))
}

// ============================================================================
// Provider guards
// ============================================================================

func TestCallRequiresConfiguration(t *testing.T) {
	logger, _ := commons.NewApplicationLogger()
	provider := NewTwilioTelephony(logger, &configs.TwilioConfig{}, "https://voice.example.com")

	assert.Equal(t, "twilio", provider.Name())

	_, err := provider.Call(context.Background(), "+15550100", 7, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")

	assert.Error(t, provider.Transfer(context.Background(), "CA12345", "+15550100"))
	assert.Error(t, provider.Hangup(context.Background(), "CA12345"))
}

func TestCallRequiresOutboundNumber(t *testing.T) {
	logger, _ := commons.NewApplicationLogger()
	provider := NewTwilioTelephony(logger, &configs.TwilioConfig{
		AccountSid: "AC12345",
		AuthToken:  "token-123",
	}, "https://voice.example.com")

	_, err := provider.Call(context.Background(), "+15550100", 7, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone number")
}
