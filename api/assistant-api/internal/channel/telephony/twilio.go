// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package channel_telephony streams phone calls over provider media
// websockets. Twilio media streams carry JSON text frames with base64
// µ-law 8kHz payloads; the streamer converts to and from the internal
// format at the socket.
package channel_telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	internal_telephony_base "github.com/rapidaai/voice/api/assistant-api/internal/channel/telephony/internal/base"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

const (
	outputPaceInterval = 20 * time.Millisecond

	writeWait        = 10 * time.Second
	handshakeWait    = 10 * time.Second
	closeGracePeriod = 5 * time.Second
)

// Twilio media-stream event names.
const (
	twilioEventConnected = "connected"
	twilioEventStart     = "start"
	twilioEventMedia     = "media"
	twilioEventStop      = "stop"
	twilioEventClear     = "clear"
)

// twilioEnvelope is one websocket text frame on a Twilio media stream.
type twilioEnvelope struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid,omitempty"`
	Start     *twilioStart `json:"start,omitempty"`
	Media     *twilioMedia `json:"media,omitempty"`
}

type twilioStart struct {
	CallSid          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type twilioMedia struct {
	Payload string `json:"payload"`
}

// StartEvent carries the identifiers Twilio sends when a media stream
// begins. The talk handler resolves the call row and agent from these
// before the streamer is built.
type StartEvent struct {
	StreamSid string
	CallSid   string
}

// ReadStart consumes frames from a fresh Twilio media-stream connection
// until the start event arrives and returns its identifiers. The callSid
// comes from the start block itself or, for <Stream> TwiML that passes it
// explicitly, from the custom parameters.
func ReadStart(conn *websocket.Conn) (*StartEvent, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeWait))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("telephony: media stream closed before start: %w", err)
		}

		var envelope twilioEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		switch envelope.Event {
		case twilioEventStart:
			event := &StartEvent{StreamSid: envelope.StreamSid}
			if envelope.Start != nil {
				event.CallSid = envelope.Start.CallSid
				if event.CallSid == "" {
					event.CallSid = envelope.Start.CustomParameters["callSid"]
				}
			}
			return event, nil
		case twilioEventStop:
			return nil, fmt.Errorf("telephony: media stream stopped before start")
		default:
			// connected and anything else before start is handshake noise.
		}
	}
}

// ============================================================================
// twilioStreamer
// ============================================================================

// twilioStreamer implements the Streamer interface over a Twilio media
// stream. Inbound payloads are decoded and resampled to the internal
// format; outbound frames are companded back to µ-law and paced at
// real time. A clear event flushes Twilio's own playback buffer on
// barge-in.
type twilioStreamer struct {
	internal_telephony_base.BaseTelephonyStreamer

	conn      *websocket.Conn
	writeMu   *sync.Mutex
	streamSid string
}

// NewTwilioStreamer wraps an upgraded media-stream connection whose start
// event has already been consumed by ReadStart. The call may be nil when
// no row matched the provider sid; the session then runs unpersisted.
func NewTwilioStreamer(
	ctx context.Context,
	logger commons.Logger,
	conn *websocket.Conn,
	agent *internal_entity.Agent,
	call *internal_entity.Call,
	streamSid string,
) (internal_type.Streamer, error) {
	if conn == nil {
		return nil, fmt.Errorf("telephony: websocket connection is required")
	}

	s := &twilioStreamer{
		BaseTelephonyStreamer: internal_telephony_base.NewBaseTelephonyStreamer(logger, agent, call,
			internal_telephony_base.WithSourceAudioConfig(internal_audio.NewMulaw8khzMonoAudioConfig()),
		),
		conn:      conn,
		writeMu:   &sync.Mutex{},
		streamSid: streamSid,
	}

	go s.runSocketReader()
	go s.runOutputWriter()
	go s.watchCallerContext(ctx)

	return s, nil
}

// ============================================================================
// Reader - Twilio to talk loop
// ============================================================================

func (s *twilioStreamer) runSocketReader() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.Ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.Logger.Warnw("Twilio socket read failed", "error", err, "stream_sid", s.streamSid)
			}
			s.PushDisconnection(internal_type.DisconnectionTypeClient)
			return
		}

		var envelope twilioEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			s.Logger.Warnw("Unparseable twilio frame, dropping", "error", err, "stream_sid", s.streamSid)
			continue
		}

		switch envelope.Event {
		case twilioEventMedia:
			if envelope.Media == nil || envelope.Media.Payload == "" {
				continue
			}
			ulaw, err := s.Encoder().DecodeString(envelope.Media.Payload)
			if err != nil {
				s.Logger.Warnw("Media payload is not valid base64, dropping", "error", err, "stream_sid", s.streamSid)
				continue
			}
			s.BufferAndSendInput(s.ResampleToInternal(ulaw))

		case twilioEventStop:
			s.Logger.Infow("Twilio stream stopped", "stream_sid", s.streamSid)
			s.PushDisconnection(internal_type.DisconnectionTypeClient)
			return

		case twilioEventConnected, twilioEventStart:
			// Handshake events, consumed by ReadStart on a well-behaved
			// stream; harmless if Twilio repeats them.

		default:
			s.Logger.Debugw("Ignoring twilio event", "event", envelope.Event, "stream_sid", s.streamSid)
		}
	}
}

// ============================================================================
// Writer - talk loop to Twilio
// ============================================================================

// runOutputWriter paces one media frame per tick. Frames are buffered in
// the internal format and companded to µ-law at write time so barge-in
// can still discard them untranscoded.
func (s *twilioStreamer) runOutputWriter() {
	ticker := time.NewTicker(outputPaceInterval)
	defer ticker.Stop()

	var pendingAudio [][]byte

	for {
		select {
		case <-s.Ctx.Done():
			return

		case <-s.FlushAudioCh:
			for _, frame := range pendingAudio {
				s.RecycleFrame(frame)
			}
			pendingAudio = pendingAudio[:0]

		case <-ticker.C:
			if len(pendingAudio) == 0 {
				continue
			}
			frame := pendingAudio[0]
			pendingAudio = pendingAudio[1:]
			s.writeMediaFrame(frame)
			s.RecycleFrame(frame)

		case message := <-s.OutputCh:
			if assistant, ok := message.(*internal_type.ConversationAssistantMessage); ok && len(assistant.GetAudio()) > 0 {
				pendingAudio = append(pendingAudio, assistant.Audio)
			}
		}
	}
}

func (s *twilioStreamer) writeMediaFrame(frame []byte) {
	payload := s.Encoder().EncodeToString(s.ResampleFromInternal(frame))
	err := s.writeJSON(&twilioEnvelope{
		Event:     twilioEventMedia,
		StreamSid: s.streamSid,
		Media:     &twilioMedia{Payload: payload},
	})
	if err != nil {
		s.Logger.Debugw("Media frame write failed", "error", err, "stream_sid", s.streamSid)
	}
}

// sendClear tells Twilio to drop whatever audio it has buffered for
// playback. Without it a barge-in only stops new frames while several
// seconds of queued speech keep playing.
func (s *twilioStreamer) sendClear() {
	err := s.writeJSON(&twilioEnvelope{
		Event:     twilioEventClear,
		StreamSid: s.streamSid,
	})
	if err != nil {
		s.Logger.Warnw("Failed to send clear to twilio", "error", err, "stream_sid", s.streamSid)
	}
}

func (s *twilioStreamer) writeJSON(envelope *twilioEnvelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("telephony: failed to encode media frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// ============================================================================
// Streamer interface
// ============================================================================

// Send pushes session output toward the phone. Twilio has no control
// channel, so transcripts and session events are log-only here; the
// caller hears audio and nothing else.
func (s *twilioStreamer) Send(response internal_type.Stream) error {
	switch data := response.(type) {
	case *internal_type.ConversationAssistantMessage:
		if audio := data.GetAudio(); len(audio) > 0 {
			s.BufferAndSendOutput(audio)
		}
		return nil

	case *internal_type.ConversationInterruption:
		if data.Source == internal_type.InterruptionSourceWord {
			s.ClearInputBuffer()
			s.ClearOutputBuffer()
			s.sendClear()
		}
		return nil

	case *internal_type.ConversationDisconnection:
		return nil

	default:
		s.Logger.Debugw("Twilio session message", "type", fmt.Sprintf("%T", response), "stream_sid", s.streamSid)
		return nil
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

func (s *twilioStreamer) watchCallerContext(callerCtx context.Context) {
	select {
	case <-callerCtx.Done():
		s.Logger.Infow("Caller context cancelled, closing twilio streamer", "stream_sid", s.streamSid)
		s.Close()
	case <-s.Ctx.Done():
	}
}

// Close is idempotent. It signals the talk loop, closes the websocket
// with a proper close frame, and cancels the streamer context last so
// Recv can still drain buffered input.
func (s *twilioStreamer) Close() error {
	s.PushDisconnection(internal_type.DisconnectionTypeClient)

	deadline := time.Now().Add(closeGracePeriod)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	s.Cancel()
	return s.conn.Close()
}
