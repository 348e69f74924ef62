// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// Test Fixtures
// =============================================================================

type mockLogger struct{}

func (m *mockLogger) Level() zapcore.Level                                        { return zapcore.DebugLevel }
func (m *mockLogger) Debug(args ...interface{})                                   {}
func (m *mockLogger) Debugf(template string, args ...interface{})                 {}
func (m *mockLogger) Debugw(msg string, keysAndValues ...interface{})             {}
func (m *mockLogger) Info(args ...interface{})                                    {}
func (m *mockLogger) Infof(template string, args ...interface{})                  {}
func (m *mockLogger) Infow(msg string, keysAndValues ...interface{})              {}
func (m *mockLogger) Warn(args ...interface{})                                    {}
func (m *mockLogger) Warnf(template string, args ...interface{})                  {}
func (m *mockLogger) Warnw(msg string, keysAndValues ...interface{})              {}
func (m *mockLogger) Error(args ...interface{})                                   {}
func (m *mockLogger) Errorf(template string, args ...interface{})                 {}
func (m *mockLogger) Errorw(msg string, keysAndValues ...interface{})             {}
func (m *mockLogger) DPanic(args ...interface{})                                  {}
func (m *mockLogger) DPanicf(template string, args ...interface{})                {}
func (m *mockLogger) Panic(args ...interface{})                                   {}
func (m *mockLogger) Panicf(template string, args ...interface{})                 {}
func (m *mockLogger) Fatal(args ...interface{})                                   {}
func (m *mockLogger) Fatalf(template string, args ...interface{})                 {}
func (m *mockLogger) Benchmark(functionName string, duration time.Duration)       {}
func (m *mockLogger) Tracef(ctx context.Context, format string, a ...interface{}) {}
func (m *mockLogger) Sync() error                                                 { return nil }

// fakeChatModel plays back one scripted event stream per StreamChat call
// and records the exact messages and tools each call received.
type fakeChatModel struct {
	name string

	mu       sync.Mutex
	scripts  []func(emit func(internal_agent_executor.ChatEvent) error) error
	messages [][]*internal_type.Message
	tools    [][]*internal_agent_executor.ToolDefinition
}

func (m *fakeChatModel) Name() string { return m.name }

func (m *fakeChatModel) StreamChat(
	ctx context.Context,
	messages []*internal_type.Message,
	tools []*internal_agent_executor.ToolDefinition,
	emit func(event internal_agent_executor.ChatEvent) error,
) error {
	m.mu.Lock()
	snapshot := make([]*internal_type.Message, len(messages))
	copy(snapshot, messages)
	m.messages = append(m.messages, snapshot)
	m.tools = append(m.tools, tools)
	var script func(emit func(internal_agent_executor.ChatEvent) error) error
	if len(m.scripts) > 0 {
		script = m.scripts[0]
		m.scripts = m.scripts[1:]
	}
	m.mu.Unlock()

	if script == nil {
		return emit(internal_agent_executor.DoneEvent{})
	}
	return script(emit)
}

func (m *fakeChatModel) callMessages(call int) []*internal_type.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[call]
}

func (m *fakeChatModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// speakScript streams the given deltas and finishes cleanly.
func speakScript(deltas ...string) func(emit func(internal_agent_executor.ChatEvent) error) error {
	return func(emit func(internal_agent_executor.ChatEvent) error) error {
		for _, delta := range deltas {
			if err := emit(internal_agent_executor.TextDeltaEvent{Text: delta}); err != nil {
				return err
			}
		}
		return emit(internal_agent_executor.DoneEvent{})
	}
}

// toolScript streams the deltas, then requests the tool calls, then
// finishes cleanly.
func toolScript(deltas []string, calls ...internal_agent_executor.ToolCallEvent) func(emit func(internal_agent_executor.ChatEvent) error) error {
	return func(emit func(internal_agent_executor.ChatEvent) error) error {
		for _, delta := range deltas {
			if err := emit(internal_agent_executor.TextDeltaEvent{Text: delta}); err != nil {
				return err
			}
		}
		for _, call := range calls {
			if err := emit(call); err != nil {
				return err
			}
		}
		return emit(internal_agent_executor.DoneEvent{})
	}
}

type fakeToolExecutor struct {
	definitions []*internal_agent_executor.ToolDefinition
	results     map[string]map[string]interface{}

	mu    sync.Mutex
	calls []string
}

func (e *fakeToolExecutor) Definitions(ctx context.Context, names []string) []*internal_agent_executor.ToolDefinition {
	resolved := make([]*internal_agent_executor.ToolDefinition, 0, len(names))
	for _, name := range names {
		for _, definition := range e.definitions {
			if definition.Name == name {
				resolved = append(resolved, definition)
			}
		}
	}
	return resolved
}

func (e *fakeToolExecutor) Execute(ctx context.Context, communication internal_type.Communication, name string, arguments map[string]interface{}) map[string]interface{} {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	e.mu.Unlock()
	if result, ok := e.results[name]; ok {
		return result
	}
	return map[string]interface{}{"ok": true}
}

func (e *fakeToolExecutor) executed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

type fakeKnowledge struct {
	context string
	err     error

	mu      sync.Mutex
	queries []string
}

func (k *fakeKnowledge) RetrieveContext(ctx context.Context, agent *internal_entity.Agent, query string) (string, error) {
	k.mu.Lock()
	k.queries = append(k.queries, query)
	k.mu.Unlock()
	return k.context, k.err
}

// fakeCommunication records every packet the executor hands back.
type fakeCommunication struct {
	agent *internal_entity.Agent
	call  *internal_entity.Call
	logs  []*internal_type.Message

	mu      sync.Mutex
	packets []internal_type.Packet
}

func (c *fakeCommunication) Assistant() *internal_entity.Agent             { return c.agent }
func (c *fakeCommunication) Conversation() *internal_entity.Call           { return c.call }
func (c *fakeCommunication) GetConversationLogs() []*internal_type.Message { return c.logs }

func (c *fakeCommunication) OnPacket(ctx context.Context, packet internal_type.Packet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, packet)
}

func (c *fakeCommunication) collected() []internal_type.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]internal_type.Packet, len(c.packets))
	copy(out, c.packets)
	return out
}

// awaitPacket blocks until a packet matching the predicate arrives.
func (c *fakeCommunication) awaitPacket(t *testing.T, match func(internal_type.Packet) bool) internal_type.Packet {
	t.Helper()
	var found internal_type.Packet
	require.Eventually(t, func() bool {
		for _, packet := range c.collected() {
			if match(packet) {
				found = packet
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "expected packet never arrived")
	return found
}

func (c *fakeCommunication) awaitMessage(t *testing.T) internal_type.LLMMessagePacket {
	t.Helper()
	packet := c.awaitPacket(t, func(p internal_type.Packet) bool {
		_, ok := p.(internal_type.LLMMessagePacket)
		return ok
	})
	return packet.(internal_type.LLMMessagePacket)
}

func (c *fakeCommunication) streamedText() string {
	var builder strings.Builder
	for _, packet := range c.collected() {
		if delta, ok := packet.(internal_type.LLMStreamPacket); ok {
			builder.WriteString(delta.Text)
		}
	}
	return builder.String()
}

func newTestAgent(toolsEnabled string) *internal_entity.Agent {
	return &internal_entity.Agent{
		Audited:      gorm_model.Audited{Id: 7},
		Name:         "Scheduler",
		SystemPrompt: "You schedule appointments.",
		LlmModel:     "gpt-4o",
		ToolsEnabled: toolsEnabled,
		IsActive:     true,
	}
}

func newTestCommunication(toolsEnabled string) *fakeCommunication {
	agent := newTestAgent(toolsEnabled)
	return &fakeCommunication{
		agent: agent,
		call:  &internal_entity.Call{Audited: gorm_model.Audited{Id: 42}},
		logs: []*internal_type.Message{
			{Role: internal_type.MessageRoleSystem, Content: agent.SystemPrompt},
		},
	}
}

func newTestExecutor(
	t *testing.T,
	communication *fakeCommunication,
	model *fakeChatModel,
	tools internal_agent_executor.ToolExecutor,
	knowledge internal_agent_executor.KnowledgeRetriever,
) *chatAssistantExecutor {
	t.Helper()
	executor := NewChatAssistantExecutor(context.Background(), &mockLogger{}, model, tools, knowledge)
	require.NoError(t, executor.Initialize(context.Background(), communication))
	t.Cleanup(func() { _ = executor.Close(context.Background(), communication) })
	return executor.(*chatAssistantExecutor)
}

func sendUserText(t *testing.T, executor *chatAssistantExecutor, communication *fakeCommunication, contextId, text string) {
	t.Helper()
	require.NoError(t, executor.Execute(context.Background(), communication, internal_type.UserTextPacket{
		ContextID: contextId,
		Text:      text,
	}))
}

// =============================================================================
// Provider Selection Tests
// =============================================================================

func TestNewChatModelSelectsProviderByPrefix(t *testing.T) {
	credential := internal_transformer.NewVaultCredential(map[string]interface{}{
		CredentialOpenAIKey:    "sk-openai",
		CredentialAnthropicKey: "sk-anthropic",
		CredentialGoogleKey:    "sk-google",
		CredentialDeepSeekKey:  "sk-deepseek",
		CredentialGroqKey:      "sk-groq",
	})

	tests := []struct {
		model    string
		provider string
	}{
		{"claude-3-5-sonnet-20241022", "anthropic"},
		{"claude-3-haiku-20240307", "anthropic"},
		{"deepseek-chat", "deepseek"},
		{"gemini-2.0-flash", "google"},
		{"llama-3.3-70b-versatile", "groq"},
		{"mixtral-8x7b-32768", "groq"},
		{"gpt-4o", "openai"},
		{"o3-mini", "openai"},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			model, err := NewChatModel(context.Background(), &mockLogger{}, tc.model, credential)
			require.NoError(t, err)
			assert.Equal(t, tc.provider, model.Name())
		})
	}
}

func TestNewChatModelRequiresProviderKey(t *testing.T) {
	credential := internal_transformer.NewVaultCredential(map[string]interface{}{})

	for _, model := range []string{"gpt-4o", "claude-3-haiku", "gemini-1.5-pro", "deepseek-chat", "llama-3.1-8b"} {
		_, err := NewChatModel(context.Background(), &mockLogger{}, model, credential)
		assert.Error(t, err, model)
	}
}

// =============================================================================
// Turn Streaming Tests
// =============================================================================

func TestChatExecutorStreamsTurnAndPersistsMessage(t *testing.T) {
	communication := newTestCommunication("")
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		speakScript("Hello", " there", "."),
	}}
	executor := newTestExecutor(t, communication, model, nil, nil)

	sendUserText(t, executor, communication, "turn-1", "Hi")

	message := communication.awaitMessage(t)
	assert.Equal(t, "turn-1", message.ContextID)
	assert.Equal(t, internal_type.MessageRoleAssistant, message.Message.Role)
	assert.Equal(t, "Hello there.", message.Message.Content)
	assert.Equal(t, "Hello there.", communication.streamedText())

	// The model saw the seeded system prompt plus the new user message.
	sent := model.callMessages(0)
	require.Len(t, sent, 2)
	assert.Equal(t, internal_type.MessageRoleSystem, sent[0].Role)
	assert.Equal(t, "Hi", sent[1].Content)

	// The completed reply is history for the next turn.
	history := executor.snapshotHistory()
	require.Len(t, history, 3)
	assert.Equal(t, "Hello there.", history[2].Content)
}

func TestChatExecutorEmitsTurnMetrics(t *testing.T) {
	communication := newTestCommunication("")
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		speakScript("Hi."),
	}}
	executor := newTestExecutor(t, communication, model, nil, nil)

	sendUserText(t, executor, communication, "turn-1", "Hello")

	packet := communication.awaitPacket(t, func(p internal_type.Packet) bool {
		_, ok := p.(internal_type.MetricPacket)
		return ok
	})
	metrics := packet.(internal_type.MetricPacket).Metrics
	names := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		names = append(names, metric.Name)
	}
	assert.Contains(t, names, "llm.turn_duration_ms")
	assert.Contains(t, names, "llm.time_to_first_token_ms")
}

func TestChatExecutorEmptyTurnStillSignalsCompletion(t *testing.T) {
	communication := newTestCommunication("")
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		speakScript(),
	}}
	executor := newTestExecutor(t, communication, model, nil, nil)

	sendUserText(t, executor, communication, "turn-1", "Hello")

	message := communication.awaitMessage(t)
	assert.Equal(t, "", message.Message.Content)

	// No text means no assistant entry and no first-token latency.
	history := executor.snapshotHistory()
	require.Len(t, history, 2)
	packet := communication.awaitPacket(t, func(p internal_type.Packet) bool {
		_, ok := p.(internal_type.MetricPacket)
		return ok
	})
	metrics := packet.(internal_type.MetricPacket).Metrics
	require.Len(t, metrics, 1)
	assert.Equal(t, "llm.turn_duration_ms", metrics[0].Name)
}

func TestChatExecutorMintsContextIdWhenAbsent(t *testing.T) {
	communication := newTestCommunication("")
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		speakScript("Hi."),
	}}
	executor := newTestExecutor(t, communication, model, nil, nil)

	sendUserText(t, executor, communication, "", "Hello")

	message := communication.awaitMessage(t)
	assert.Equal(t, "42-1", message.ContextID)
}

func TestChatExecutorStaticSpeechJoinsHistory(t *testing.T) {
	communication := newTestCommunication("")
	model := &fakeChatModel{name: "scripted"}
	executor := newTestExecutor(t, communication, model, nil, nil)

	require.NoError(t, executor.Execute(context.Background(), communication, internal_type.StaticPacket{
		ContextID: "greeting",
		Text:      "Hello! How can I help you today?",
	}))

	history := executor.snapshotHistory()
	require.Len(t, history, 2)
	assert.Equal(t, internal_type.MessageRoleAssistant, history[1].Role)
	assert.Equal(t, "Hello! How can I help you today?", history[1].Content)
}

// =============================================================================
// Knowledge Injection Tests
// =============================================================================

func TestChatExecutorInjectsKnowledgeBeforeUserMessage(t *testing.T) {
	communication := newTestCommunication("")
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		speakScript("Returns are free for 30 days."),
		speakScript("Anything else?"),
	}}
	knowledge := &fakeKnowledge{context: "Our return policy lasts 30 days.\n\n---\n\nRefunds are processed in 5 days."}
	executor := newTestExecutor(t, communication, model, nil, knowledge)

	sendUserText(t, executor, communication, "turn-1", "What is your return policy?")
	communication.awaitMessage(t)

	sent := model.callMessages(0)
	require.Len(t, sent, 3)
	assert.Equal(t, internal_type.MessageRoleSystem, sent[1].Role)
	assert.True(t, strings.HasPrefix(sent[1].Content, KnowledgeContextPrefix))
	assert.Contains(t, sent[1].Content, "return policy lasts 30 days")
	assert.Equal(t, "What is your return policy?", sent[2].Content)

	require.Len(t, knowledge.queries, 1)
	assert.Equal(t, "What is your return policy?", knowledge.queries[0])

	// The injected context stays put for later turns.
	sendUserText(t, executor, communication, "turn-2", "Thanks")
	require.Eventually(t, func() bool { return model.callCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	second := model.callMessages(1)
	assert.True(t, strings.HasPrefix(second[1].Content, KnowledgeContextPrefix))
}

func TestChatExecutorSkipsKnowledgeWhenEmpty(t *testing.T) {
	communication := newTestCommunication("")
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		speakScript("Hi."),
	}}
	executor := newTestExecutor(t, communication, model, nil, &fakeKnowledge{context: ""})

	sendUserText(t, executor, communication, "turn-1", "Hello")
	communication.awaitMessage(t)

	require.Len(t, model.callMessages(0), 2)
}

func TestChatExecutorSurvivesKnowledgeFailure(t *testing.T) {
	communication := newTestCommunication("")
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		speakScript("Hi."),
	}}
	executor := newTestExecutor(t, communication, model, nil, &fakeKnowledge{err: errors.New("search unreachable")})

	sendUserText(t, executor, communication, "turn-1", "Hello")

	message := communication.awaitMessage(t)
	assert.Equal(t, "Hi.", message.Message.Content)
	require.Len(t, model.callMessages(0), 2)
}

// =============================================================================
// Tool Execution Tests
// =============================================================================

func TestChatExecutorRunsToolAndRecordsExchange(t *testing.T) {
	communication := newTestCommunication(`["get_weather"]`)
	tools := &fakeToolExecutor{
		definitions: []*internal_agent_executor.ToolDefinition{{
			Name:                 "get_weather",
			Description:          "Look up current weather for a city.",
			Parameters:           map[string]interface{}{"type": "object"},
			SpeakDuringExecution: "Let me check that for you.",
		}},
		results: map[string]map[string]interface{}{
			"get_weather": {"temp": 20, "conditions": "sunny"},
		},
	}
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		toolScript([]string{"One moment."}, internal_agent_executor.ToolCallEvent{
			Name:      "get_weather",
			Arguments: map[string]interface{}{"city": "Paris"},
		}),
	}}
	executor := newTestExecutor(t, communication, model, tools, nil)

	// Initialize resolved the enabled tool and passes it to the model.
	require.Len(t, executor.definitions, 1)

	sendUserText(t, executor, communication, "turn-1", "Weather in Paris?")
	communication.awaitMessage(t)

	require.Equal(t, []string{"get_weather"}, tools.executed())
	require.Len(t, model.tools[0], 1)

	var filler internal_type.StaticPacket
	var call internal_type.ToolCallPacket
	for _, packet := range communication.collected() {
		switch payload := packet.(type) {
		case internal_type.StaticPacket:
			filler = payload
		case internal_type.ToolCallPacket:
			call = payload
		}
	}
	assert.Equal(t, "Let me check that for you.", filler.Text)
	assert.Equal(t, "get_weather", call.Name)
	assert.Equal(t, "Paris", call.Arguments["city"])
	assert.Contains(t, call.Result, `"temp":20`)

	// The exchange lands in history as an assistant/user pair before the
	// closing assistant message.
	history := executor.snapshotHistory()
	require.Len(t, history, 5)
	assert.Equal(t, "[Called get_weather]", history[2].Content)
	assert.Equal(t, internal_type.MessageRoleUser, history[3].Role)
	assert.True(t, strings.HasPrefix(history[3].Content, "Tool result: "))
	assert.Contains(t, history[3].Content, `"conditions":"sunny"`)
	assert.Equal(t, "One moment.", history[4].Content)
}

func TestChatExecutorSkipsFillerWhenUnconfigured(t *testing.T) {
	communication := newTestCommunication(`["get_weather"]`)
	tools := &fakeToolExecutor{
		definitions: []*internal_agent_executor.ToolDefinition{{
			Name:       "get_weather",
			Parameters: map[string]interface{}{"type": "object"},
		}},
	}
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		toolScript(nil, internal_agent_executor.ToolCallEvent{Name: "get_weather", Arguments: map[string]interface{}{}}),
	}}
	executor := newTestExecutor(t, communication, model, tools, nil)

	sendUserText(t, executor, communication, "turn-1", "Weather?")
	communication.awaitMessage(t)

	for _, packet := range communication.collected() {
		_, isStatic := packet.(internal_type.StaticPacket)
		assert.False(t, isStatic, "no filler was configured")
	}
}

func TestChatExecutorSpeaksToolFailureLine(t *testing.T) {
	communication := newTestCommunication(`["lookup_order"]`)
	tools := &fakeToolExecutor{
		definitions: []*internal_agent_executor.ToolDefinition{{
			Name:       "lookup_order",
			Parameters: map[string]interface{}{"type": "object"},
		}},
		results: map[string]map[string]interface{}{
			"lookup_order": {
				"error":             "Timeout after 1s",
				"_speak_on_failure": "I couldn't reach the order system, sorry about that.",
			},
		},
	}
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		toolScript(nil, internal_agent_executor.ToolCallEvent{Name: "lookup_order", Arguments: map[string]interface{}{"order_id": "A1"}}),
	}}
	executor := newTestExecutor(t, communication, model, tools, nil)

	sendUserText(t, executor, communication, "turn-1", "Where is my order?")
	communication.awaitMessage(t)

	// Failure line is spoken after the tool call packet.
	var sawCall bool
	var spoken string
	for _, packet := range communication.collected() {
		switch payload := packet.(type) {
		case internal_type.ToolCallPacket:
			sawCall = true
		case internal_type.StaticPacket:
			if sawCall {
				spoken = payload.Text
			}
		}
	}
	assert.Equal(t, "I couldn't reach the order system, sorry about that.", spoken)

	// The failure still reaches the model as a tool result.
	history := executor.snapshotHistory()
	assert.Contains(t, history[3].Content, "Timeout after 1s")
}

func TestChatExecutorEndsCallOnToolRequest(t *testing.T) {
	communication := newTestCommunication(`["end_call"]`)
	tools := &fakeToolExecutor{
		definitions: []*internal_agent_executor.ToolDefinition{{
			Name:       "end_call",
			Parameters: map[string]interface{}{"type": "object"},
		}},
		results: map[string]map[string]interface{}{
			"end_call": {"action": "end_call", "reason": "user_requested"},
		},
	}
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		toolScript([]string{"Goodbye!"}, internal_agent_executor.ToolCallEvent{Name: "end_call", Arguments: map[string]interface{}{"reason": "user_requested"}}),
	}}
	executor := newTestExecutor(t, communication, model, tools, nil)

	sendUserText(t, executor, communication, "turn-1", "Bye")

	packet := communication.awaitPacket(t, func(p internal_type.Packet) bool {
		_, ok := p.(internal_type.CompletionPacket)
		return ok
	})
	assert.Equal(t, "user_requested", packet.(internal_type.CompletionPacket).Reason)

	// The turn ends at the completion; no closing message, no result pair.
	for _, collected := range communication.collected() {
		_, isMessage := collected.(internal_type.LLMMessagePacket)
		assert.False(t, isMessage, "end_call terminates the turn")
	}
	history := executor.snapshotHistory()
	require.Len(t, history, 2)
}

func TestChatExecutorDefaultsEndCallReason(t *testing.T) {
	communication := newTestCommunication(`["end_call"]`)
	tools := &fakeToolExecutor{
		definitions: []*internal_agent_executor.ToolDefinition{{
			Name:       "end_call",
			Parameters: map[string]interface{}{"type": "object"},
		}},
		results: map[string]map[string]interface{}{
			"end_call": {"action": "end_call"},
		},
	}
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		toolScript(nil, internal_agent_executor.ToolCallEvent{Name: "end_call", Arguments: map[string]interface{}{}}),
	}}
	executor := newTestExecutor(t, communication, model, tools, nil)

	sendUserText(t, executor, communication, "turn-1", "Bye")

	packet := communication.awaitPacket(t, func(p internal_type.Packet) bool {
		_, ok := p.(internal_type.CompletionPacket)
		return ok
	})
	assert.Equal(t, "agent_ended", packet.(internal_type.CompletionPacket).Reason)
}

// =============================================================================
// Interruption Tests
// =============================================================================

func TestChatExecutorDiscardsOutputAfterInterruption(t *testing.T) {
	communication := newTestCommunication(`["get_weather"]`)
	tools := &fakeToolExecutor{
		definitions: []*internal_agent_executor.ToolDefinition{{
			Name:       "get_weather",
			Parameters: map[string]interface{}{"type": "object"},
		}},
	}

	firstDelta := make(chan struct{})
	interrupted := make(chan struct{})
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		func(emit func(internal_agent_executor.ChatEvent) error) error {
			if err := emit(internal_agent_executor.TextDeltaEvent{Text: "The weather today "}); err != nil {
				return err
			}
			close(firstDelta)
			<-interrupted
			if err := emit(internal_agent_executor.TextDeltaEvent{Text: "is sunny and warm."}); err != nil {
				return err
			}
			if err := emit(internal_agent_executor.ToolCallEvent{Name: "get_weather", Arguments: map[string]interface{}{}}); err != nil {
				return err
			}
			return emit(internal_agent_executor.DoneEvent{})
		},
	}}
	executor := newTestExecutor(t, communication, model, tools, nil)

	sendUserText(t, executor, communication, "turn-1", "Weather?")
	<-firstDelta
	require.NoError(t, executor.Execute(context.Background(), communication, internal_type.InterruptionPacket{ContextID: "turn-1"}))
	close(interrupted)

	// What was said before the barge-in survives as the turn's message;
	// everything after it is dropped and the tool never runs.
	message := communication.awaitMessage(t)
	assert.Equal(t, "The weather today ", message.Message.Content)
	assert.Equal(t, "The weather today ", communication.streamedText())
	assert.Empty(t, tools.executed())

	history := executor.snapshotHistory()
	require.Len(t, history, 3)
	assert.Equal(t, "The weather today ", history[2].Content)
}

func TestChatExecutorNewTurnSupersedesRunning(t *testing.T) {
	communication := newTestCommunication("")
	firstDelta := make(chan struct{})
	release := make(chan struct{})
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		func(emit func(internal_agent_executor.ChatEvent) error) error {
			if err := emit(internal_agent_executor.TextDeltaEvent{Text: "First answer"}); err != nil {
				return err
			}
			close(firstDelta)
			<-release
			if err := emit(internal_agent_executor.TextDeltaEvent{Text: " keeps going."}); err != nil {
				return err
			}
			return emit(internal_agent_executor.DoneEvent{})
		},
		speakScript("Second answer."),
	}}
	executor := newTestExecutor(t, communication, model, nil, nil)

	sendUserText(t, executor, communication, "turn-1", "First question")
	<-firstDelta
	sendUserText(t, executor, communication, "turn-2", "Second question")
	close(release)

	first := communication.awaitPacket(t, func(p internal_type.Packet) bool {
		message, ok := p.(internal_type.LLMMessagePacket)
		return ok && message.ContextID == "turn-1"
	}).(internal_type.LLMMessagePacket)
	second := communication.awaitPacket(t, func(p internal_type.Packet) bool {
		message, ok := p.(internal_type.LLMMessagePacket)
		return ok && message.ContextID == "turn-2"
	}).(internal_type.LLMMessagePacket)

	assert.Equal(t, "First answer", first.Message.Content)
	assert.Equal(t, "Second answer.", second.Message.Content)
	assert.NotContains(t, communication.streamedText(), "keeps going")
}

// =============================================================================
// Failure Tests
// =============================================================================

func TestChatExecutorReportsStreamFailure(t *testing.T) {
	communication := newTestCommunication("")
	model := &fakeChatModel{name: "scripted", scripts: []func(emit func(internal_agent_executor.ChatEvent) error) error{
		func(emit func(internal_agent_executor.ChatEvent) error) error {
			if err := emit(internal_agent_executor.TextDeltaEvent{Text: "Par"}); err != nil {
				return err
			}
			if err := emit(internal_agent_executor.DoneEvent{}); err != nil {
				return err
			}
			return errors.New("connection reset")
		},
	}}
	executor := newTestExecutor(t, communication, model, nil, nil)

	sendUserText(t, executor, communication, "turn-1", "Hello")

	packet := communication.awaitPacket(t, func(p internal_type.Packet) bool {
		_, ok := p.(internal_type.ErrorPacket)
		return ok
	})
	assert.Equal(t, "LLM error: connection reset", packet.(internal_type.ErrorPacket).Message)

	// A failed turn leaves no assistant message behind.
	for _, collected := range communication.collected() {
		_, isMessage := collected.(internal_type.LLMMessagePacket)
		assert.False(t, isMessage)
	}
	history := executor.snapshotHistory()
	require.Len(t, history, 2)
	assert.Equal(t, internal_type.MessageRoleUser, history[1].Role)
}

func TestChatExecutorNameReflectsProvider(t *testing.T) {
	executor := NewChatAssistantExecutor(context.Background(), &mockLogger{}, &fakeChatModel{name: "openai"}, nil, nil)
	assert.Equal(t, fmt.Sprintf("chat-%s", "openai"), executor.Name())
}
