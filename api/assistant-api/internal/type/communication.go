// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_type

import (
	"context"
	"fmt"

	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
)

// Communication is the executor's view of a running session: the resolved
// agent, the persisted call, the conversation so far, and a way to hand
// packets back to the session loop.
type Communication interface {
	Assistant() *internal_entity.Agent
	Conversation() *internal_entity.Call

	// GetConversationLogs returns the running history in model order,
	// starting with the system prompt.
	GetConversationLogs() []*Message

	// OnPacket hands an executor result back to the session loop. Must not
	// block; the session fans packets out to synthesis and the transport.
	OnPacket(ctx context.Context, packet Packet)
}

// Telephony is a provider that can place and steer phone calls out of band
// of the media stream.
type Telephony interface {
	Name() string

	// Call places an outbound call and returns the provider call id.
	Call(ctx context.Context, toNumber string, agentId uint64, callId uint64) (string, error)

	// Transfer redirects a live call to another number.
	Transfer(ctx context.Context, providerCallId string, toNumber string) error

	// Hangup terminates a live call.
	Hangup(ctx context.Context, providerCallId string) error
}

// LLMTextAssembler regroups streamed model deltas into units suitable for
// incremental synthesis.
type LLMTextAssembler interface {
	// Assemble consumes one delta and returns any complete sentences.
	Assemble(ctx context.Context, delta string) []string

	// Flush returns whatever trailing text remains at end of stream and
	// resets the assembler for the next turn.
	Flush(ctx context.Context) string
}

// AudioResampler converts raw audio between two formats, decoding and
// re-encoding companded formats as needed.
type AudioResampler interface {
	Resample(data []byte, from *internal_audio.AudioConfig, to *internal_audio.AudioConfig) ([]byte, error)
}

// GetAnswerPrefix builds the websocket path a telephony provider should
// connect its media stream to for the given call.
func GetAnswerPrefix(agentId uint64, callId uint64) string {
	return fmt.Sprintf("ws/voice-twilio?agent_id=%d&call_id=%d", agentId, callId)
}
