// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_type

import (
	"context"
	"time"
)

// =============================================================================
// Stream
// =============================================================================

// Stream is a single item flowing through a channel streamer, in either
// direction. Concrete values are the Conversation* message types below;
// streamers type-switch on them.
type Stream any

// Streamer is the transport side of a conversation: a bidirectional pipe
// of Stream values over a websocket feeding the talk loop.
type Streamer interface {
	// Context returns the streamer-owned context. It is cancelled once the
	// underlying connection is gone, never before Close has drained output.
	Context() context.Context

	// Recv blocks for the next inbound Stream. Returns io.EOF once the
	// client is gone and all buffered input is consumed.
	Recv() (Stream, error)

	// Send queues an outbound Stream. Audio is paced to playback rate by
	// the implementation; control messages go out immediately.
	Send(Stream) error

	Close() error
}

// =============================================================================
// Conversation messages
// =============================================================================

// ConversationUserMessage carries caller input: audio frames from the
// transport or typed text from a browser client.
type ConversationUserMessage struct {
	Audio []byte
	Text  string
	Time  time.Time
}

func (m *ConversationUserMessage) GetAudio() []byte {
	if m == nil {
		return nil
	}
	return m.Audio
}

func (m *ConversationUserMessage) GetText() string {
	if m == nil {
		return ""
	}
	return m.Text
}

// ConversationAssistantMessage carries assistant output toward the caller:
// synthesized audio chunks and, for text-capable clients, the spoken text.
type ConversationAssistantMessage struct {
	Audio []byte
	Text  string
	Time  time.Time
}

func (m *ConversationAssistantMessage) GetAudio() []byte {
	if m == nil {
		return nil
	}
	return m.Audio
}

func (m *ConversationAssistantMessage) GetText() string {
	if m == nil {
		return ""
	}
	return m.Text
}

// DisconnectionType describes why a conversation is being torn down.
type DisconnectionType string

const (
	DisconnectionTypeNormal   DisconnectionType = "normal"            // clean end of conversation
	DisconnectionTypeTool     DisconnectionType = "tool"              // end_call tool directive
	DisconnectionTypeClient   DisconnectionType = "client_disconnect" // client hung up or closed the socket
	DisconnectionTypeProvider DisconnectionType = "provider_failure"  // upstream speech/llm provider failure
	DisconnectionTypeUnknown  DisconnectionType = "unknown"
)

// ConversationDisconnection asks the streamer to finish: flush whatever is
// already queued, then close the transport.
type ConversationDisconnection struct {
	Type DisconnectionType
	Time time.Time
}

// InterruptionSource tells how a barge-in was detected.
type InterruptionSource string

const (
	InterruptionSourceWord InterruptionSource = "word" // transcribed speech while assistant talking
	InterruptionSourceVad  InterruptionSource = "vad"  // provider voice-activity event
)

// ConversationInterruption tells the streamer the caller spoke over the
// assistant. Word-sourced interruptions discard all buffered output.
type ConversationInterruption struct {
	Source  InterruptionSource
	StartAt time.Time
	EndAt   time.Time
}

// ConversationInitialization announces a ready session to the client.
type ConversationInitialization struct {
	AgentId   uint64
	AgentName string
}

// ConversationCompletion announces the end of a session to the client.
type ConversationCompletion struct {
	Reason   string
	Duration time.Duration
}

// ConversationTranscript mirrors one finished utterance (either role) to
// text-capable clients.
type ConversationTranscript struct {
	Role    string
	Content string
	IsFinal bool
}

// ConversationToolCall reports a completed tool invocation to the client.
type ConversationToolCall struct {
	Name      string
	Arguments map[string]interface{}
	Result    string
}

// ConversationError reports a non-fatal error to the client.
type ConversationError struct {
	Message string
}

// =============================================================================
// Shared value types
// =============================================================================

// Message is one entry of the running LLM conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Metadata is a single key/value annotation on a conversation, e.g.
// "telephony.uuid" carrying the provider call identifier.
type Metadata struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metric is a single measured quantity attached to a conversation turn or
// session.
type Metric struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Description string  `json:"description,omitempty"`
}

// Roles used in conversation history and transcripts.
const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)
