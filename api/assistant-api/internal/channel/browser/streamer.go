// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package channel_browser streams a browser voice session over a plain
// websocket: binary frames carry raw PCM16 16kHz audio in both
// directions, text frames carry JSON control messages.
package channel_browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	channel_base "github.com/rapidaai/voice/api/assistant-api/internal/channel/base"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

const (
	// outputPaceInterval is how often one buffered audio frame is written
	// to the socket, matching the 20ms frame duration so playback never
	// outruns real time on TTS bursts.
	outputPaceInterval = 20 * time.Millisecond

	writeWait        = 10 * time.Second
	closeGracePeriod = 5 * time.Second
	maxMessageSize   = 1 << 20
)

// Inbound text frame types.
const (
	clientMessageAudio = "audio"
	clientMessageEnd   = "end"
)

// Outbound control message types. The schema is part of the browser
// client contract.
const (
	controlSessionStarted = "session_started"
	controlSessionEnded   = "session_ended"
	controlTranscript     = "transcript"
	controlToolCall       = "tool_call"
	controlError          = "error"
)

// clientMessage is one JSON text frame from the browser. Audio may arrive
// as base64 text instead of a binary frame when the client cannot send
// binary (e.g. some proxies).
type clientMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type sessionStartedMessage struct {
	Type  string `json:"type"`
	Agent string `json:"agent"`
}

type sessionEndedMessage struct {
	Type     string `json:"type"`
	Reason   string `json:"reason"`
	Duration uint64 `json:"duration"`
}

type transcriptMessage struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
	IsFinal bool   `json:"is_final"`
}

type toolCallMessage struct {
	Type      string                 `json:"type"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Result    string                 `json:"result"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ============================================================================
// browserStreamer
// ============================================================================

// browserStreamer implements the Streamer interface over a gorilla
// websocket. The browser records and plays the internal format directly,
// so no resampling happens on this path.
type browserStreamer struct {
	channel_base.BaseStreamer

	conn      *websocket.Conn
	writeMu   *sync.Mutex
	sessionID string
}

// NewBrowserStreamer wraps an upgraded websocket connection. The streamer
// owns its own context (derived from context.Background) so cleanup is
// never short-circuited by the caller's context being cancelled first; a
// separate goroutine watches the caller's context and closes gracefully.
func NewBrowserStreamer(
	ctx context.Context,
	logger commons.Logger,
	conn *websocket.Conn,
) (internal_type.Streamer, error) {
	if conn == nil {
		return nil, fmt.Errorf("browser: websocket connection is required")
	}
	conn.SetReadLimit(maxMessageSize)

	s := &browserStreamer{
		BaseStreamer: channel_base.NewBaseStreamer(logger,
			channel_base.WithInputAudioConfig(internal_audio.RAPIDA_INTERNAL_AUDIO_CONFIG),
			channel_base.WithOutputAudioConfig(internal_audio.RAPIDA_INTERNAL_AUDIO_CONFIG),
		),
		conn:      conn,
		writeMu:   &sync.Mutex{},
		sessionID: uuid.New().String(),
	}

	go s.runSocketReader()
	go s.runOutputWriter()
	go s.watchCallerContext(ctx)

	return s, nil
}

// ============================================================================
// Reader - client to talk loop
// ============================================================================

// runSocketReader reads websocket frames until the client goes away and
// funnels caller audio into the input channel via the base buffering.
func (s *browserStreamer) runSocketReader() {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.Logger.Infow("Browser socket closed by client", "session", s.sessionID)
			} else if s.Ctx.Err() == nil {
				s.Logger.Warnw("Browser socket read failed", "error", err, "session", s.sessionID)
			}
			s.PushDisconnection(internal_type.DisconnectionTypeClient)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.BufferAndSendInput(data)
		case websocket.TextMessage:
			s.handleClientMessage(data)
		}
	}
}

func (s *browserStreamer) handleClientMessage(raw []byte) {
	var message clientMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		s.Logger.Warnw("Unparseable client message, dropping", "error", err, "session", s.sessionID)
		return
	}

	switch message.Type {
	case clientMessageAudio:
		audio, err := base64.StdEncoding.DecodeString(message.Data)
		if err != nil {
			s.Logger.Warnw("Client audio payload is not valid base64, dropping", "error", err, "session", s.sessionID)
			return
		}
		s.BufferAndSendInput(audio)
	case clientMessageEnd:
		s.PushDisconnection(internal_type.DisconnectionTypeClient)
	default:
		s.Logger.Warnw("Unknown client message type, dropping", "type", message.Type, "session", s.sessionID)
	}
}

// ============================================================================
// Writer - talk loop to client
// ============================================================================

// runOutputWriter drains the output channel for the lifetime of the
// streamer. Audio frames are queued and written one per tick (20ms
// real-time) so a burst of synthesized speech reaches the client at
// playback rate; FlushAudioCh discards the queue on barge-in.
func (s *browserStreamer) runOutputWriter() {
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
			if err := s.writeMessage(websocket.BinaryMessage, frame); err != nil {
				s.Logger.Debugw("Audio frame write failed", "error", err, "session", s.sessionID)
			}
			s.RecycleFrame(frame)

		case message := <-s.OutputCh:
			if assistant, ok := message.(*internal_type.ConversationAssistantMessage); ok && len(assistant.GetAudio()) > 0 {
				pendingAudio = append(pendingAudio, assistant.Audio)
			}
		}
	}
}

// writeMessage serializes socket writes; gorilla allows one writer at a
// time and control messages go out from the caller's goroutine while the
// output writer paces audio.
func (s *browserStreamer) writeMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *browserStreamer) writeControl(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("browser: failed to encode control message: %w", err)
	}
	return s.writeMessage(websocket.TextMessage, data)
}

// ============================================================================
// Streamer interface
// ============================================================================

// Send pushes session output toward the browser. Audio is buffered into
// fixed frames and paced by the output writer; control messages are small
// and written immediately so the client sees state changes without
// queueing behind audio.
func (s *browserStreamer) Send(response internal_type.Stream) error {
	switch data := response.(type) {
	case *internal_type.ConversationAssistantMessage:
		if audio := data.GetAudio(); len(audio) > 0 {
			s.BufferAndSendOutput(audio)
		}
		return nil

	case *internal_type.ConversationInitialization:
		return s.writeControl(&sessionStartedMessage{Type: controlSessionStarted, Agent: data.AgentName})

	case *internal_type.ConversationTranscript:
		return s.writeControl(&transcriptMessage{
			Type:    controlTranscript,
			Role:    data.Role,
			Content: data.Content,
			IsFinal: data.IsFinal,
		})

	case *internal_type.ConversationToolCall:
		return s.writeControl(&toolCallMessage{
			Type:      controlToolCall,
			Name:      data.Name,
			Arguments: data.Arguments,
			Result:    data.Result,
		})

	case *internal_type.ConversationError:
		return s.writeControl(&errorMessage{Type: controlError, Message: data.Message})

	case *internal_type.ConversationCompletion:
		return s.writeControl(&sessionEndedMessage{
			Type:     controlSessionEnded,
			Reason:   data.Reason,
			Duration: uint64(data.Duration.Seconds()),
		})

	case *internal_type.ConversationInterruption:
		if data.Source == internal_type.InterruptionSourceWord {
			s.ClearInputBuffer()
			s.ClearOutputBuffer()
		}
		return nil

	case *internal_type.ConversationDisconnection:
		// Close writes the close frame; nothing else reaches the client.
		return nil

	default:
		s.Logger.Warnw("Unknown outbound message type, dropping", "type", fmt.Sprintf("%T", response), "session", s.sessionID)
		return nil
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// watchCallerContext closes the streamer gracefully when the caller's
// context is cancelled, e.g. the HTTP server shutting down.
func (s *browserStreamer) watchCallerContext(callerCtx context.Context) {
	select {
	case <-callerCtx.Done():
		s.Logger.Infow("Caller context cancelled, closing browser streamer", "session", s.sessionID)
		s.Close()
	case <-s.Ctx.Done():
	}
}

// Close is idempotent. It signals the talk loop via the disconnection
// push, tells the client the session is over, and cancels the streamer
// context last so Recv can still drain buffered input.
func (s *browserStreamer) Close() error {
	s.PushDisconnection(internal_type.DisconnectionTypeClient)

	deadline := time.Now().Add(closeGracePeriod)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	s.Cancel()
	return s.conn.Close()
}
