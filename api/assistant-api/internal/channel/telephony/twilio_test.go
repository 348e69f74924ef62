// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package channel_telephony

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wire sizes for one 20ms frame: 160 µ-law bytes on the Twilio side,
// 640 linear16 bytes internally. Input flushes at 60ms = 1920 bytes.
const (
	testUlawFrameSize  = 160
	testFrameSize      = 640
	testInputThreshold = 1920
)

// ============================================================================
// Test helpers
// ============================================================================

func newConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConnCh := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	t.Cleanup(server.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case serverConn := <-serverConnCh:
		return serverConn, client
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server side of the websocket")
		return nil, nil
	}
}

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	return logger
}

func newTwilioPair(t *testing.T) (internal_type.Streamer, *websocket.Conn) {
	t.Helper()
	serverConn, client := newConnPair(t)

	agent := &internal_entity.Agent{Audited: gorm_model.Audited{Id: 7}, Name: "Support Agent"}
	call := &internal_entity.Call{Audited: gorm_model.Audited{Id: 99}, AgentId: 7}
	streamer, err := NewTwilioStreamer(context.Background(), newTestLogger(t), serverConn, agent, call, "MZ0123456789")
	require.NoError(t, err)
	t.Cleanup(func() { streamer.Close() })

	return streamer, client
}

func recvWithTimeout(t *testing.T, s internal_type.Streamer) (internal_type.Stream, error) {
	t.Helper()

	type result struct {
		message internal_type.Stream
		err     error
	}
	resultCh := make(chan result, 1)
	go func() {
		message, err := s.Recv()
		resultCh <- result{message, err}
	}()

	select {
	case r := <-resultCh:
		return r.message, r.err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Recv")
		return nil, nil
	}
}

func writeClientEnvelope(t *testing.T, client *websocket.Conn, envelope *twilioEnvelope) {
	t.Helper()
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, data))
}

func readClientEnvelope(t *testing.T, client *websocket.Conn) *twilioEnvelope {
	t.Helper()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var envelope twilioEnvelope
	require.NoError(t, json.Unmarshal(data, &envelope))
	return &envelope
}

// ============================================================================
// ReadStart
// ============================================================================

func TestReadStart_ConnectedThenStart(t *testing.T) {
	serverConn, client := newConnPair(t)

	writeClientEnvelope(t, client, &twilioEnvelope{Event: twilioEventConnected})
	writeClientEnvelope(t, client, &twilioEnvelope{
		Event:     twilioEventStart,
		StreamSid: "MZaaa",
		Start:     &twilioStart{CallSid: "CAbbb"},
	})

	event, err := ReadStart(serverConn)
	require.NoError(t, err)
	assert.Equal(t, "MZaaa", event.StreamSid)
	assert.Equal(t, "CAbbb", event.CallSid)
}

func TestReadStart_CallSidFromCustomParameters(t *testing.T) {
	serverConn, client := newConnPair(t)

	writeClientEnvelope(t, client, &twilioEnvelope{
		Event:     twilioEventStart,
		StreamSid: "MZccc",
		Start:     &twilioStart{CustomParameters: map[string]string{"callSid": "CAddd"}},
	})

	event, err := ReadStart(serverConn)
	require.NoError(t, err)
	assert.Equal(t, "CAddd", event.CallSid)
}

func TestReadStart_StopBeforeStartFails(t *testing.T) {
	serverConn, client := newConnPair(t)

	writeClientEnvelope(t, client, &twilioEnvelope{Event: twilioEventStop})

	_, err := ReadStart(serverConn)
	assert.Error(t, err)
}

func TestReadStart_SkipsUnparseableFrames(t *testing.T) {
	serverConn, client := newConnPair(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("not json")))
	writeClientEnvelope(t, client, &twilioEnvelope{
		Event:     twilioEventStart,
		StreamSid: "MZeee",
		Start:     &twilioStart{CallSid: "CAfff"},
	})

	event, err := ReadStart(serverConn)
	require.NoError(t, err)
	assert.Equal(t, "MZeee", event.StreamSid)
}

func TestReadStart_DisconnectBeforeStartFails(t *testing.T) {
	serverConn, client := newConnPair(t)
	client.Close()

	_, err := ReadStart(serverConn)
	assert.Error(t, err)
}

// ============================================================================
// Inbound: media frames to talk loop
// ============================================================================

func TestTwilioStreamer_MediaPayloadsBatchToUserMessage(t *testing.T) {
	streamer, client := newTwilioPair(t)

	// Three 20ms µ-law frames make one 60ms internal batch.
	payload := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0xff}, testUlawFrameSize))
	for i := 0; i < 3; i++ {
		writeClientEnvelope(t, client, &twilioEnvelope{
			Event: twilioEventMedia,
			Media: &twilioMedia{Payload: payload},
		})
	}

	message, err := recvWithTimeout(t, streamer)
	require.NoError(t, err)
	user, ok := message.(*internal_type.ConversationUserMessage)
	require.True(t, ok, "expected a user message, got %T", message)
	assert.Len(t, user.GetAudio(), testInputThreshold)
}

func TestTwilioStreamer_StopEventSignalsDisconnect(t *testing.T) {
	streamer, client := newTwilioPair(t)

	writeClientEnvelope(t, client, &twilioEnvelope{Event: twilioEventStop})

	message, err := recvWithTimeout(t, streamer)
	require.NoError(t, err)
	disconnection, ok := message.(*internal_type.ConversationDisconnection)
	require.True(t, ok, "expected a disconnection, got %T", message)
	assert.Equal(t, internal_type.DisconnectionTypeClient, disconnection.Type)
}

func TestTwilioStreamer_MalformedFramesAreIgnored(t *testing.T) {
	streamer, client := newTwilioPair(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("ガ")))
	writeClientEnvelope(t, client, &twilioEnvelope{Event: twilioEventMedia, Media: &twilioMedia{Payload: "***"}})
	writeClientEnvelope(t, client, &twilioEnvelope{Event: twilioEventMedia})
	writeClientEnvelope(t, client, &twilioEnvelope{Event: "mark"})

	// Reader must survive all of the above and still see the stop.
	writeClientEnvelope(t, client, &twilioEnvelope{Event: twilioEventStop})

	message, err := recvWithTimeout(t, streamer)
	require.NoError(t, err)
	_, ok := message.(*internal_type.ConversationDisconnection)
	assert.True(t, ok, "expected a disconnection, got %T", message)
}

// ============================================================================
// Outbound: talk loop to Twilio
// ============================================================================

func TestTwilioStreamer_AssistantAudioBecomesMediaFrames(t *testing.T) {
	streamer, client := newTwilioPair(t)

	require.NoError(t, streamer.Send(&internal_type.ConversationAssistantMessage{
		Audio: bytes.Repeat([]byte{0x11}, testFrameSize*2),
	}))

	for i := 0; i < 2; i++ {
		envelope := readClientEnvelope(t, client)
		assert.Equal(t, twilioEventMedia, envelope.Event)
		assert.Equal(t, "MZ0123456789", envelope.StreamSid)
		require.NotNil(t, envelope.Media)

		ulaw, err := base64.StdEncoding.DecodeString(envelope.Media.Payload)
		require.NoError(t, err)
		assert.Len(t, ulaw, testUlawFrameSize)
	}
}

func TestTwilioStreamer_WordInterruptionSendsClear(t *testing.T) {
	streamer, client := newTwilioPair(t)

	require.NoError(t, streamer.Send(&internal_type.ConversationInterruption{
		Source: internal_type.InterruptionSourceWord,
	}))

	envelope := readClientEnvelope(t, client)
	assert.Equal(t, twilioEventClear, envelope.Event)
	assert.Equal(t, "MZ0123456789", envelope.StreamSid)
}

func TestTwilioStreamer_VadInterruptionSendsNothing(t *testing.T) {
	streamer, client := newTwilioPair(t)

	require.NoError(t, streamer.Send(&internal_type.ConversationInterruption{
		Source: internal_type.InterruptionSourceVad,
	}))

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := client.ReadMessage()
	netErr, ok := err.(net.Error)
	require.True(t, ok, "expected a read timeout, got %v", err)
	assert.True(t, netErr.Timeout())
}

func TestTwilioStreamer_ControlMessagesAreLogOnly(t *testing.T) {
	streamer, client := newTwilioPair(t)

	require.NoError(t, streamer.Send(&internal_type.ConversationTranscript{
		Role:    internal_type.MessageRoleAssistant,
		Content: "Hello there.",
		IsFinal: true,
	}))
	require.NoError(t, streamer.Send(&internal_type.ConversationCompletion{Reason: "twilio_disconnect"}))

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := client.ReadMessage()
	netErr, ok := err.(net.Error)
	require.True(t, ok, "expected a read timeout, got %v", err)
	assert.True(t, netErr.Timeout())
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestTwilioStreamer_CloseSendsCloseFrame(t *testing.T) {
	streamer, client := newTwilioPair(t)

	require.NoError(t, streamer.Close())

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close frame, got %v", err)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}

func TestTwilioStreamer_CloseIsIdempotent(t *testing.T) {
	streamer, _ := newTwilioPair(t)

	require.NoError(t, streamer.Close())
	assert.NotPanics(t, func() { streamer.Close() })
}
