// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_llm selects a completion provider for an agent's model
// and runs the conversation turns against it: history upkeep, knowledge
// injection, delta streaming, and tool execution.
package internal_llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
	internal_anthropic "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor/llm/internal/anthropic"
	internal_google "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor/llm/internal/google"
	internal_openai "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor/llm/internal/openai"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
)

// Credential keys read from the llm vault entry.
const (
	CredentialOpenAIKey    = "openai_api_key"
	CredentialAnthropicKey = "anthropic_api_key"
	CredentialGoogleKey    = "google_api_key"
	CredentialDeepSeekKey  = "deepseek_api_key"
	CredentialGroqKey      = "groq_api_key"
)

// OpenAI-compatible hosts.
const (
	DeepSeekBaseUrl = "https://api.deepseek.com"
	GroqBaseUrl     = "https://api.groq.com/openai/v1"
)

// KnowledgeContextPrefix precedes retrieved chunks in the system message
// injected directly before the user question.
const KnowledgeContextPrefix = "Relevant knowledge base context (use this to answer the user's question):\n\n"

// =============================================================================
// Provider selection
// =============================================================================

// chatProvider binds model-name prefixes to a client constructor. The
// first matching row wins; anything unmatched goes to openai.
type chatProvider struct {
	prefixes []string
	build    func(ctx context.Context, logger commons.Logger, model string, credentials utils.Option) (internal_agent_executor.ChatModel, error)
}

var chatProviders = []chatProvider{
	{prefixes: []string{"claude"}, build: buildAnthropic},
	{prefixes: []string{"deepseek"}, build: buildDeepSeek},
	{prefixes: []string{"gemini"}, build: buildGoogle},
	{prefixes: []string{"llama", "mixtral"}, build: buildGroq},
}

// NewChatModel resolves the provider for a model name and builds its
// completion client from the vault credential.
func NewChatModel(
	ctx context.Context,
	logger commons.Logger,
	model string,
	credential *internal_transformer.VaultCredential,
) (internal_agent_executor.ChatModel, error) {
	credentials := utils.Option(credential.AsMap())
	for _, provider := range chatProviders {
		for _, prefix := range provider.prefixes {
			if strings.HasPrefix(model, prefix) {
				return provider.build(ctx, logger, model, credentials)
			}
		}
	}
	return buildOpenAI(ctx, logger, model, credentials)
}

func buildOpenAI(_ context.Context, logger commons.Logger, model string, credentials utils.Option) (internal_agent_executor.ChatModel, error) {
	return internal_openai.NewOpenAIChatModel(logger, "openai", model, credentials.GetStringOr(CredentialOpenAIKey, ""), "")
}

func buildDeepSeek(_ context.Context, logger commons.Logger, model string, credentials utils.Option) (internal_agent_executor.ChatModel, error) {
	return internal_openai.NewOpenAIChatModel(logger, "deepseek", model, credentials.GetStringOr(CredentialDeepSeekKey, ""), DeepSeekBaseUrl)
}

func buildGroq(_ context.Context, logger commons.Logger, model string, credentials utils.Option) (internal_agent_executor.ChatModel, error) {
	return internal_openai.NewOpenAIChatModel(logger, "groq", model, credentials.GetStringOr(CredentialGroqKey, ""), GroqBaseUrl)
}

func buildAnthropic(_ context.Context, logger commons.Logger, model string, credentials utils.Option) (internal_agent_executor.ChatModel, error) {
	return internal_anthropic.NewAnthropicChatModel(logger, model, credentials.GetStringOr(CredentialAnthropicKey, ""))
}

func buildGoogle(ctx context.Context, logger commons.Logger, model string, credentials utils.Option) (internal_agent_executor.ChatModel, error) {
	return internal_google.NewGoogleChatModel(ctx, logger, model, credentials.GetStringOr(CredentialGoogleKey, ""))
}

// =============================================================================
// Chat executor
// =============================================================================

// chatTurn is the cancellation scope of one user utterance. A barge-in or
// a newer utterance marks it interrupted; the model stream still drains
// to done, but everything it produces afterwards is discarded.
type chatTurn struct {
	id          string
	interrupted atomic.Bool
}

type chatAssistantExecutor struct {
	logger    commons.Logger
	ctx       context.Context
	model     internal_agent_executor.ChatModel
	tools     internal_agent_executor.ToolExecutor
	knowledge internal_agent_executor.KnowledgeRetriever

	mu          sync.RWMutex
	history     []*internal_type.Message
	definitions []*internal_agent_executor.ToolDefinition

	turnMu  sync.Mutex
	turn    *chatTurn
	turnSeq atomic.Uint64

	done chan struct{}
}

// NewChatAssistantExecutor creates the executor that runs conversation
// turns against a completion client. tools and knowledge are optional;
// without them the agent just talks.
func NewChatAssistantExecutor(
	ctx context.Context,
	logger commons.Logger,
	model internal_agent_executor.ChatModel,
	tools internal_agent_executor.ToolExecutor,
	knowledge internal_agent_executor.KnowledgeRetriever,
) internal_agent_executor.AssistantExecutor {
	return &chatAssistantExecutor{
		ctx:       ctx,
		logger:    logger,
		model:     model,
		tools:     tools,
		knowledge: knowledge,
		history:   make([]*internal_type.Message, 0),
		done:      make(chan struct{}),
	}
}

func (executor *chatAssistantExecutor) Name() string {
	return fmt.Sprintf("chat-%s", executor.model.Name())
}

// Initialize seeds the model history from the session's logs and resolves
// the agent's enabled tools to schemas.
func (executor *chatAssistantExecutor) Initialize(ctx context.Context, communication internal_type.Communication) error {
	start := time.Now()

	executor.mu.Lock()
	executor.history = append(executor.history, communication.GetConversationLogs()...)
	executor.mu.Unlock()

	if executor.tools != nil {
		executor.definitions = executor.tools.Definitions(ctx, communication.Assistant().EnabledTools())
	}

	executor.logger.Benchmark("ChatAssistantExecutor.Initialize", time.Since(start))
	return nil
}

// Execute accepts one caller packet. A user utterance starts a turn in
// the background; interruptions flag the in-flight turn; static speech
// joins the history so the model knows it was said.
func (executor *chatAssistantExecutor) Execute(ctx context.Context, communication internal_type.Communication, packet internal_type.Packet) error {
	switch payload := packet.(type) {
	case internal_type.UserTextPacket:
		turn := executor.beginTurn(communication, payload.ContextId())
		utils.Go(executor.ctx, func() {
			executor.processTurn(executor.ctx, communication, turn, payload.Text)
		})
		return nil

	case internal_type.StaticPacket:
		executor.mu.Lock()
		executor.history = append(executor.history, &internal_type.Message{
			Role:    internal_type.MessageRoleAssistant,
			Content: payload.Text,
		})
		executor.mu.Unlock()
		return nil

	case internal_type.InterruptionPacket:
		executor.interruptTurn()
		return nil

	default:
		return nil
	}
}

// Close interrupts whatever turn is still draining and releases the
// executor. Idempotent.
func (executor *chatAssistantExecutor) Close(ctx context.Context, communication internal_type.Communication) error {
	executor.interruptTurn()
	select {
	case <-executor.done:
	default:
		close(executor.done)
	}
	executor.logger.Debugf("chat executor closed for conversation %d", communication.Conversation().Id)
	return nil
}

// beginTurn opens the scope for a new utterance. A newer utterance
// supersedes whatever turn is still draining.
func (executor *chatAssistantExecutor) beginTurn(communication internal_type.Communication, contextId string) *chatTurn {
	executor.turnMu.Lock()
	defer executor.turnMu.Unlock()
	if executor.turn != nil {
		executor.turn.interrupted.Store(true)
	}
	if contextId == "" {
		contextId = fmt.Sprintf("%d-%d", communication.Conversation().Id, executor.turnSeq.Add(1))
	}
	turn := &chatTurn{id: contextId}
	executor.turn = turn
	return turn
}

func (executor *chatAssistantExecutor) interruptTurn() {
	executor.turnMu.Lock()
	defer executor.turnMu.Unlock()
	if executor.turn != nil {
		executor.turn.interrupted.Store(true)
	}
}

// processTurn runs one full turn: append the user message, inject
// knowledge context, stream the completion, execute requested tools, and
// close the turn out with the complete assistant message.
func (executor *chatAssistantExecutor) processTurn(
	ctx context.Context,
	communication internal_type.Communication,
	turn *chatTurn,
	text string,
) {
	select {
	case <-executor.done:
		return
	default:
	}

	start := time.Now()

	executor.mu.Lock()
	executor.history = append(executor.history, &internal_type.Message{
		Role:    internal_type.MessageRoleUser,
		Content: text,
	})
	executor.mu.Unlock()

	executor.injectKnowledge(ctx, communication, text)

	var fullResponse strings.Builder
	var pending []internal_agent_executor.ToolCallEvent
	var firstToken time.Duration

	err := executor.model.StreamChat(ctx, executor.snapshotHistory(), executor.definitions, func(event internal_agent_executor.ChatEvent) error {
		switch payload := event.(type) {
		case internal_agent_executor.TextDeltaEvent:
			// An interrupted stream drains to done so the produced text is
			// known, but nothing after the interruption is spoken or kept.
			if turn.interrupted.Load() {
				return nil
			}
			if fullResponse.Len() == 0 {
				firstToken = time.Since(start)
			}
			fullResponse.WriteString(payload.Text)
			communication.OnPacket(ctx, internal_type.LLMStreamPacket{
				ContextID: turn.id,
				Text:      payload.Text,
			})
		case internal_agent_executor.ToolCallEvent:
			pending = append(pending, payload)
		}
		return nil
	})
	if err != nil {
		executor.logger.Errorf("chat executor: completion stream failed: %v", err)
		communication.OnPacket(ctx, internal_type.ErrorPacket{
			ContextID: turn.id,
			Message:   fmt.Sprintf("LLM error: %v", err),
		})
		return
	}

	for _, call := range pending {
		if turn.interrupted.Load() {
			break
		}
		if executor.invokeTool(ctx, communication, turn, call) {
			return
		}
	}

	executor.finishTurn(ctx, communication, turn, fullResponse.String(), firstToken, start)
}

// injectKnowledge slots retrieved context directly before the pending
// user message, where the model reads it as grounding for exactly that
// question. Retrieval failures degrade to an uninformed answer.
func (executor *chatAssistantExecutor) injectKnowledge(ctx context.Context, communication internal_type.Communication, text string) {
	if executor.knowledge == nil {
		return
	}
	knowledgeContext, err := executor.knowledge.RetrieveContext(ctx, communication.Assistant(), text)
	if err != nil {
		executor.logger.Warnf("chat executor: knowledge retrieval failed: %v", err)
		return
	}
	if knowledgeContext == "" {
		return
	}
	message := &internal_type.Message{
		Role:    internal_type.MessageRoleSystem,
		Content: KnowledgeContextPrefix + knowledgeContext,
	}
	executor.mu.Lock()
	index := len(executor.history) - 1
	executor.history = append(executor.history[:index], append([]*internal_type.Message{message}, executor.history[index:]...)...)
	executor.mu.Unlock()
}

// invokeTool runs one requested tool and reports whether it asked to end
// the conversation.
func (executor *chatAssistantExecutor) invokeTool(
	ctx context.Context,
	communication internal_type.Communication,
	turn *chatTurn,
	call internal_agent_executor.ToolCallEvent,
) bool {
	if executor.tools == nil {
		return false
	}

	// Filler speech covers the wait; the session cuts it off once the
	// tool result packet lands.
	if filler := executor.fillerFor(call.Name); filler != "" {
		communication.OnPacket(ctx, internal_type.StaticPacket{ContextID: turn.id, Text: filler})
	}

	result := executor.tools.Execute(ctx, communication, call.Name, call.Arguments)

	resultJson, err := json.Marshal(result)
	if err != nil {
		resultJson = []byte("{}")
	}
	communication.OnPacket(ctx, internal_type.ToolCallPacket{
		ContextID: turn.id,
		Name:      call.Name,
		Arguments: call.Arguments,
		Result:    string(resultJson),
	})

	if line, ok := result["_speak_on_failure"].(string); ok && line != "" {
		if _, failed := result["error"]; failed {
			communication.OnPacket(ctx, internal_type.StaticPacket{ContextID: turn.id, Text: line})
		}
	}

	if action, ok := result["action"].(string); ok && action == "end_call" {
		reason := "agent_ended"
		if value, ok := result["reason"].(string); ok && value != "" {
			reason = value
		}
		communication.OnPacket(ctx, internal_type.CompletionPacket{ContextID: turn.id, Reason: reason})
		return true
	}

	// The rest of the conversation learns the outcome through a message
	// pair; the model reacts on its next turn.
	executor.mu.Lock()
	executor.history = append(executor.history,
		&internal_type.Message{Role: internal_type.MessageRoleAssistant, Content: fmt.Sprintf("[Called %s]", call.Name)},
		&internal_type.Message{Role: internal_type.MessageRoleUser, Content: fmt.Sprintf("Tool result: %s", resultJson)},
	)
	executor.mu.Unlock()
	return false
}

// finishTurn appends the assistant message and closes the turn out with
// the complete message and its metrics. An empty message still goes out;
// it is how the session learns the turn is over.
func (executor *chatAssistantExecutor) finishTurn(
	ctx context.Context,
	communication internal_type.Communication,
	turn *chatTurn,
	response string,
	firstToken time.Duration,
	start time.Time,
) {
	message := &internal_type.Message{
		Role:    internal_type.MessageRoleAssistant,
		Content: response,
	}
	if response != "" {
		executor.mu.Lock()
		executor.history = append(executor.history, message)
		executor.mu.Unlock()
	}

	communication.OnPacket(ctx, internal_type.LLMMessagePacket{ContextID: turn.id, Message: message})

	metrics := []*internal_type.Metric{
		{Name: "llm.turn_duration_ms", Value: float64(time.Since(start).Milliseconds())},
	}
	if firstToken > 0 {
		metrics = append(metrics, &internal_type.Metric{
			Name:  "llm.time_to_first_token_ms",
			Value: float64(firstToken.Milliseconds()),
		})
	}
	communication.OnPacket(ctx, internal_type.MetricPacket{ContextID: turn.id, Metrics: metrics})
}

func (executor *chatAssistantExecutor) fillerFor(name string) string {
	for _, definition := range executor.definitions {
		if definition.Name == name {
			return definition.SpeakDuringExecution
		}
	}
	return ""
}

func (executor *chatAssistantExecutor) snapshotHistory() []*internal_type.Message {
	executor.mu.RLock()
	defer executor.mu.RUnlock()
	messages := make([]*internal_type.Message, len(executor.history))
	copy(messages, executor.history)
	return messages
}
