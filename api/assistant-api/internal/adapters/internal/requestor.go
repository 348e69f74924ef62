// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package adapter_internal runs one voice conversation end to end: caller
// audio from the streamer goes through recognition into the assistant
// executor, executor output comes back through sentence assembly and
// synthesis toward the streamer, and everything spoken on either side is
// persisted against the call.
package adapter_internal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rapidaai/voice/api/assistant-api/config"
	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
	internal_llm "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor/llm"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_service "github.com/rapidaai/voice/api/assistant-api/internal/service"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

const (
	// sttConnectFailureMessage is the exact error line the client sees
	// when the recognizer cannot open its connection. The session aborts
	// right after.
	sttConnectFailureMessage = "Speech-to-text service failed to connect. Check Deepgram API key."

	// endReasonSetupFailure marks calls that never got past Connect.
	endReasonSetupFailure = "stt_connect_failed"

	// defaultEndReason is used when the transport drops without a more
	// specific reason from the channel handler.
	defaultEndReason = "client_disconnect"

	// completionDrainTimeout caps how long an agent-initiated hangup
	// waits for queued speech to finish playing.
	completionDrainTimeout = 15 * time.Second
)

// MetadataKeyCallSid is the conversation metadata key carrying the
// telephony provider's call identifier.
const MetadataKeyCallSid = "telephony.call_sid"

// =============================================================================
// Session state
// =============================================================================

// sessionState describes where in its lifecycle a conversation is. The
// session moves Loading → Listening on Connect, bounces between
// Listening, Thinking and Speaking per turn, and settles on Ended once.
type sessionState int32

const (
	stateInit sessionState = iota
	stateLoading
	stateListening
	stateThinking
	stateSpeaking
	stateEnded
)

func (s sessionState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateLoading:
		return "loading"
	case stateListening:
		return "listening"
	case stateThinking:
		return "thinking"
	case stateSpeaking:
		return "speaking"
	case stateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// =============================================================================
// Collaborators
// =============================================================================

// Services carries the persistence and reasoning collaborators one
// session needs. Tools and Knowledge may be nil; the executor degrades
// to plain conversation without them.
type Services struct {
	Calls       internal_service.CallService
	Transcripts internal_service.TranscriptService
	Prompts     internal_service.PromptService
	Tools       internal_agent_executor.ToolExecutor
	Knowledge   internal_agent_executor.KnowledgeRetriever
}

// RecognizerFactory opens one speech-to-text session for the given
// initialize options.
type RecognizerFactory func(ctx context.Context, logger commons.Logger, options *internal_transformer.SpeechToTextInitializeOptions) (internal_transformer.SpeechToTextTransformer, error)

// SynthesizerFactory opens the synthesis chain for the given initialize
// options, primary provider first. Later entries are fallbacks tried
// when an earlier provider produces no audio for a sentence.
type SynthesizerFactory func(ctx context.Context, logger commons.Logger, options *internal_transformer.TextToSpeechInitializeOptions) ([]internal_transformer.TextToSpeechTransformer, error)

// ExecutorFactory builds the reasoning executor for one agent.
type ExecutorFactory func(ctx context.Context, logger commons.Logger, agent *internal_entity.Agent) (internal_agent_executor.AssistantExecutor, error)

// =============================================================================
// Options
// =============================================================================

type TalkerOption func(*voiceRequestor)

// WithEndReason sets the reason recorded when the transport closes the
// conversation, e.g. "browser_disconnect" or "twilio_disconnect".
func WithEndReason(reason string) TalkerOption {
	return func(t *voiceRequestor) {
		if reason != "" {
			t.endReason = reason
		}
	}
}

// WithRecorder attaches a dual-track audio recorder to the session.
func WithRecorder(recorder internal_type.Recorder) TalkerOption {
	return func(t *voiceRequestor) { t.recorder = recorder }
}

// WithRecognizerFactory overrides how the speech-to-text session is
// opened.
func WithRecognizerFactory(factory RecognizerFactory) TalkerOption {
	return func(t *voiceRequestor) { t.recognizerFactory = factory }
}

// WithSynthesizerFactory overrides how the synthesis chain is opened.
func WithSynthesizerFactory(factory SynthesizerFactory) TalkerOption {
	return func(t *voiceRequestor) { t.synthesizerFactory = factory }
}

// WithExecutorFactory overrides how the assistant executor is built.
func WithExecutorFactory(factory ExecutorFactory) TalkerOption {
	return func(t *voiceRequestor) { t.executorFactory = factory }
}

// WithAssistantExecutor pins the session to an already-built executor.
func WithAssistantExecutor(executor internal_agent_executor.AssistantExecutor) TalkerOption {
	return func(t *voiceRequestor) {
		t.executorFactory = func(context.Context, commons.Logger, *internal_entity.Agent) (internal_agent_executor.AssistantExecutor, error) {
			return executor, nil
		}
	}
}

// =============================================================================
// voiceRequestor
// =============================================================================

// speechUnit is one entry of the synthesis queue: a sentence to speak,
// or a marker closing a turn. Static units are filler and failure lines
// from tools; gen snapshots the filler generation at enqueue time so a
// landed tool result can cut exactly the filler queued before it.
type speechUnit struct {
	contextId string
	text      string
	static    bool
	gen       uint64

	// final marks the last spoken unit of a turn so the synthesizer can
	// flush provider-side buffers.
	final bool

	// endOfTurn units carry no speech. Reaching one means everything the
	// turn queued has played; the turn's assistant message is persisted
	// there.
	endOfTurn bool
	message   *internal_type.Message
}

// voiceRequestor is one live conversation. It implements the executor's
// Communication contract and owns the streamer-facing talk loop, the
// recognition callbacks and the synthesis queue.
type voiceRequestor struct {
	logger   commons.Logger
	cfg      *config.AppConfig
	streamer internal_type.Streamer
	services Services

	agent *internal_entity.Agent
	call  *internal_entity.Call

	executorFactory    ExecutorFactory
	recognizerFactory  RecognizerFactory
	synthesizerFactory SynthesizerFactory

	executor     internal_agent_executor.AssistantExecutor
	recognizer   internal_transformer.SpeechToTextTransformer
	synthesizers []internal_transformer.TextToSpeechTransformer

	assembler   internal_type.LLMTextAssembler
	assemblerMu sync.Mutex

	recorder internal_type.Recorder

	// logs is the running conversation history, starting with the
	// resolved system prompt. The executor seeds from it at Initialize
	// and the session keeps appending user and assistant messages as
	// turns finish, so tool webhooks see the live transcript.
	logs   []*internal_type.Message
	logsMu sync.Mutex

	speechQueue *speechBuffer
	drained     chan struct{}
	drainOnce   sync.Once

	state       atomic.Int32
	currentTurn atomic.Pointer[string]
	interrupted atomic.Bool
	turnSeq     atomic.Uint64
	fillerGen   atomic.Uint64
	currentUnit atomic.Pointer[speechUnit]

	startedAt time.Time
	endReason string
	endOnce   sync.Once
}

// NewVoiceRequestor wires one conversation over the given streamer. The
// agent and call rows must already exist; the channel handler creates
// them before upgrading the socket.
func NewVoiceRequestor(
	logger commons.Logger,
	cfg *config.AppConfig,
	services Services,
	streamer internal_type.Streamer,
	agent *internal_entity.Agent,
	call *internal_entity.Call,
	opts ...TalkerOption,
) (*voiceRequestor, error) {
	if streamer == nil {
		return nil, fmt.Errorf("voice requestor: streamer is required")
	}
	if agent == nil {
		return nil, fmt.Errorf("voice requestor: agent is required")
	}
	if call == nil {
		return nil, fmt.Errorf("voice requestor: call is required")
	}

	t := &voiceRequestor{
		logger:      logger,
		cfg:         cfg,
		streamer:    streamer,
		services:    services,
		agent:       agent,
		call:        call,
		speechQueue: newSpeechBuffer(),
		drained:     make(chan struct{}),
		endReason:   defaultEndReason,
	}
	t.executorFactory = t.defaultExecutorFactory()
	t.recognizerFactory = defaultRecognizerFactory(cfg)
	t.synthesizerFactory = defaultSynthesizerFactory(cfg)

	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// =============================================================================
// Communication
// =============================================================================

func (t *voiceRequestor) Assistant() *internal_entity.Agent { return t.agent }

func (t *voiceRequestor) Conversation() *internal_entity.Call { return t.call }

// GetConversationLogs returns the running history in model order,
// starting with the system prompt.
func (t *voiceRequestor) GetConversationLogs() []*internal_type.Message {
	t.logsMu.Lock()
	defer t.logsMu.Unlock()
	logs := make([]*internal_type.Message, len(t.logs))
	copy(logs, t.logs)
	return logs
}

func (t *voiceRequestor) appendLog(message *internal_type.Message) {
	t.logsMu.Lock()
	t.logs = append(t.logs, message)
	t.logsMu.Unlock()
}

// =============================================================================
// State helpers
// =============================================================================

func (t *voiceRequestor) setState(state sessionState) {
	t.state.Store(int32(state))
}

func (t *voiceRequestor) getState() sessionState {
	return sessionState(t.state.Load())
}

func (t *voiceRequestor) sessionEnded() bool {
	return t.getState() == stateEnded
}

// beginTurn opens the scope for a new user utterance and clears the
// interruption flag left behind by a barge-in.
func (t *voiceRequestor) beginTurn() string {
	turnId := fmt.Sprintf("%d-%d", t.call.Id, t.turnSeq.Add(1))
	t.currentTurn.Store(&turnId)
	t.interrupted.Store(false)
	return turnId
}

func (t *voiceRequestor) currentTurnId() string {
	if turnId := t.currentTurn.Load(); turnId != nil {
		return *turnId
	}
	return ""
}

// staleTurn reports whether a packet belongs to a turn that has been
// superseded. Packets without a context id are never stale.
func (t *voiceRequestor) staleTurn(contextId string) bool {
	return contextId != "" && contextId != t.currentTurnId()
}

func (t *voiceRequestor) signalDrained() {
	t.drainOnce.Do(func() { close(t.drained) })
}

// defaultExecutorFactory builds the chat executor for the agent's model
// with the deployment's provider credentials.
func (t *voiceRequestor) defaultExecutorFactory() ExecutorFactory {
	return func(ctx context.Context, logger commons.Logger, agent *internal_entity.Agent) (internal_agent_executor.AssistantExecutor, error) {
		model, err := internal_llm.NewChatModel(ctx, logger, agent.LlmModel, t.llmCredential())
		if err != nil {
			return nil, err
		}
		return internal_llm.NewChatAssistantExecutor(ctx, logger, model, t.services.Tools, t.services.Knowledge), nil
	}
}

func (t *voiceRequestor) llmCredential() *internal_transformer.VaultCredential {
	if t.cfg == nil {
		return internal_transformer.NewVaultCredential(map[string]interface{}{})
	}
	return internal_transformer.NewVaultCredential(map[string]interface{}{
		internal_llm.CredentialOpenAIKey:    t.cfg.OpenaiApiKey,
		internal_llm.CredentialAnthropicKey: t.cfg.AnthropicApiKey,
		internal_llm.CredentialGoogleKey:    t.cfg.GoogleApiKey,
		internal_llm.CredentialDeepSeekKey:  t.cfg.DeepseekApiKey,
		internal_llm.CredentialGroqKey:      t.cfg.GroqApiKey,
	})
}
