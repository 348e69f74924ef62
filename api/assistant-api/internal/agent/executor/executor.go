// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_agent_executor defines the contract between a session
// and the reasoning side of a conversation. An executor receives caller
// packets, runs the model turn, and hands results back through
// Communication.OnPacket; it never touches the transport or the speech
// providers directly.
package internal_agent_executor

import (
	"context"

	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
)

// AssistantExecutor drives one conversation against one model provider.
type AssistantExecutor interface {
	Name() string

	// Initialize prepares the executor for the conversation: it seeds the
	// model history from the session's logs and resolves the agent's tool
	// schemas. The conversation aborts when this fails.
	Initialize(ctx context.Context, communication internal_type.Communication) error

	// Execute accepts one caller packet. Turn processing runs in the
	// background; results come back via communication.OnPacket.
	Execute(ctx context.Context, communication internal_type.Communication, packet internal_type.Packet) error

	// Close interrupts any in-flight turn and releases the executor.
	Close(ctx context.Context, communication internal_type.Communication) error
}

// =============================================================================
// Chat events
// =============================================================================

// ChatEvent is one item of a model completion stream. Concrete values
// are TextDeltaEvent, ToolCallEvent and DoneEvent.
type ChatEvent interface {
	chatEvent()
}

// TextDeltaEvent carries one append-only piece of the assistant response.
type TextDeltaEvent struct {
	Text string
}

// ToolCallEvent carries one requested tool invocation. Arguments are the
// parsed JSON arguments; malformed arguments read as an empty object.
type ToolCallEvent struct {
	Name      string
	Arguments map[string]interface{}
}

// DoneEvent marks the end of a completion stream. Providers emit it
// exactly once, even when the stream failed.
type DoneEvent struct{}

func (TextDeltaEvent) chatEvent() {}
func (ToolCallEvent) chatEvent()  {}
func (DoneEvent) chatEvent()      {}

// ChatModel is one provider completion client. Implementations stream
// text deltas as they arrive, then every requested tool call once the
// provider stream has ended, then one DoneEvent. A mid-stream failure is
// the return value; events emitted before the failure stand.
type ChatModel interface {
	Name() string

	StreamChat(
		ctx context.Context,
		messages []*internal_type.Message,
		tools []*ToolDefinition,
		emit func(event ChatEvent) error,
	) error
}

// =============================================================================
// Tools and knowledge
// =============================================================================

// ToolDefinition is one callable tool as presented to the model.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is the JSON schema of the arguments object.
	Parameters map[string]interface{}

	// SpeakDuringExecution is filler speech played while the tool runs.
	// Never serialized to providers.
	SpeakDuringExecution string
}

// ToolExecutor resolves and runs the tools a model may call.
type ToolExecutor interface {
	// Definitions resolves enabled tool names to schemas, keeping the
	// declared order. Unknown names are dropped.
	Definitions(ctx context.Context, names []string) []*ToolDefinition

	// Execute runs one invocation and returns its result object. Failures
	// come back inside the result under "error" so the model can react to
	// them; the invocation is logged either way.
	Execute(ctx context.Context, communication internal_type.Communication, name string, arguments map[string]interface{}) map[string]interface{}
}

// KnowledgeRetriever supplies knowledge-base grounding for an utterance.
type KnowledgeRetriever interface {
	// RetrieveContext embeds the utterance, queries the agent's knowledge
	// base and returns the formatted context. Empty when the agent has no
	// usable knowledge base or nothing matched.
	RetrieveContext(ctx context.Context, agent *internal_entity.Agent, query string) (string, error)
}
