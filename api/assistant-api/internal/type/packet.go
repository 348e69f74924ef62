// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_type

import "time"

// =============================================================================
// Packets
// =============================================================================

// Packet is one unit of work inside a session: caller input on its way to
// the executors, or executor output on its way to the client. ContextId
// groups packets belonging to the same assistant turn so that stale audio
// from an interrupted turn can be discarded.
type Packet interface {
	ContextId() string
}

// UserAudioPacket carries one caller audio frame, already resampled to the
// internal format.
type UserAudioPacket struct {
	ContextID string
	Audio     []byte
}

func (p UserAudioPacket) ContextId() string { return p.ContextID }

// UserTextPacket carries typed caller text, which skips speech recognition.
type UserTextPacket struct {
	ContextID string
	Text      string
}

func (p UserTextPacket) ContextId() string { return p.ContextID }

// TranscriptPacket carries one recognition result from the speech-to-text
// provider. Interim results arrive with IsFinal false and may be revised.
type TranscriptPacket struct {
	ContextID  string
	Text       string
	Confidence float64
	Language   string
	IsFinal    bool
}

func (p TranscriptPacket) ContextId() string { return p.ContextID }

// StaticPacket carries pre-written assistant text that bypasses the LLM,
// e.g. the greeting or a tool's spoken failure line. It goes straight to
// synthesis.
type StaticPacket struct {
	ContextID string
	Text      string
}

func (p StaticPacket) ContextId() string { return p.ContextID }

// LLMStreamPacket carries one incremental text delta from the model.
type LLMStreamPacket struct {
	ContextID string
	Text      string
}

func (p LLMStreamPacket) ContextId() string { return p.ContextID }

// LLMMessagePacket carries the complete assistant message once the model
// finishes a turn.
type LLMMessagePacket struct {
	ContextID string
	Message   *Message
}

func (p LLMMessagePacket) ContextId() string { return p.ContextID }

// ToolCallPacket carries one completed tool invocation.
type ToolCallPacket struct {
	ContextID string
	Name      string
	Arguments map[string]interface{}
	Result    string
}

func (p ToolCallPacket) ContextId() string { return p.ContextID }

// ErrorPacket surfaces a non-fatal executor failure the caller should
// hear about, e.g. the model stream dropping mid-turn. It also ends the
// turn it belongs to.
type ErrorPacket struct {
	ContextID string
	Message   string
}

func (p ErrorPacket) ContextId() string { return p.ContextID }

// CompletionPacket asks the session to finish the conversation once the
// already-queued speech has played, e.g. after the model invokes the
// end-call tool.
type CompletionPacket struct {
	ContextID string
	Reason    string
}

func (p CompletionPacket) ContextId() string { return p.ContextID }

// TextToSpeechAudioPacket carries one synthesized audio chunk in the
// internal format, ready for the outbound transport.
type TextToSpeechAudioPacket struct {
	ContextID  string
	AudioChunk []byte
}

func (p TextToSpeechAudioPacket) ContextId() string { return p.ContextID }

// InterruptionPacket notifies the session that the caller interrupted the
// assistant mid-speech.
type InterruptionPacket struct {
	ContextID string
	Source    InterruptionSource
	StartAt   time.Time
	EndAt     time.Time
}

func (p InterruptionPacket) ContextId() string { return p.ContextID }

// ConversationMetadataPacket attaches provider metadata to the running
// conversation, e.g. the Twilio call sid once the media stream starts.
type ConversationMetadataPacket struct {
	ContextID string
	Metadata  []*Metadata
}

func (p ConversationMetadataPacket) ContextId() string { return p.ContextID }

// MetricPacket carries turn-level measurements from an executor, e.g.
// time to first token.
type MetricPacket struct {
	ContextID string
	Metrics   []*Metric
}

func (p MetricPacket) ContextId() string { return p.ContextID }

// ConversationMetricPacket carries session-level measurements gathered at
// teardown.
type ConversationMetricPacket struct {
	ContextID string
	Metrics   []*Metric
}

func (p ConversationMetricPacket) ContextId() string { return p.ContextID }
