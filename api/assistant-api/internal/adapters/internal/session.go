// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package adapter_internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	internal_sentence_assembler "github.com/rapidaai/voice/api/assistant-api/internal/assembler/text"
	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/utils"
)

// =============================================================================
// Connect
// =============================================================================

// Connect prepares a conversation end to end: system prompt, call row,
// executor, recognizer, synthesis chain, and finally the client-facing
// session announcement. The recognizer is the only hard dependency; when
// it cannot connect the caller hears the failure and the session aborts.
func (t *voiceRequestor) Connect(ctx context.Context) error {
	start := time.Now()
	t.setState(stateLoading)
	t.startedAt = time.Now()

	// The executor seeds its history from this log; agent edits made
	// after this point never reach a running call.
	prompt := t.agent.SystemPrompt
	if t.services.Prompts != nil {
		prompt = t.services.Prompts.Resolve(ctx, t.agent, nil)
	}
	t.logs = []*internal_type.Message{{Role: internal_type.MessageRoleSystem, Content: prompt}}

	if t.services.Calls != nil && t.call.Id != 0 {
		if err := t.services.Calls.UpdateStatus(ctx, t.call.Id, internal_entity.CallStatusInProgress); err != nil {
			t.logger.Warnf("call %d: marking in-progress failed: %v", t.call.Id, err)
		}
	}

	if t.recorder != nil {
		t.recorder.Start()
	}

	executor, err := t.executorFactory(ctx, t.logger, t.agent)
	if err != nil {
		return fmt.Errorf("assistant executor construction failed: %w", err)
	}
	t.executor = executor
	if err := t.executor.Initialize(ctx, t); err != nil {
		return fmt.Errorf("assistant executor initialization failed: %w", err)
	}

	assembler, err := internal_sentence_assembler.GetLLMTextAssembler(ctx, t.logger, utils.Option{})
	if err != nil {
		return fmt.Errorf("sentence assembler construction failed: %w", err)
	}
	t.assembler = assembler

	if err := t.initializeSpeechToText(ctx); err != nil {
		t.Notify(ctx, &internal_type.ConversationError{Message: sttConnectFailureMessage})
		return fmt.Errorf("speech-to-text initialization failed: %w", err)
	}
	t.initializeTextToSpeech(ctx)

	t.setState(stateListening)
	t.Notify(ctx, &internal_type.ConversationInitialization{
		AgentId:   t.agent.Id,
		AgentName: t.agent.Name,
	})

	utils.Go(t.streamer.Context(), func() { t.speakLoop(t.streamer.Context()) })

	t.logger.Benchmark("VoiceRequestor.Connect", time.Since(start))
	return nil
}

func (t *voiceRequestor) initializeSpeechToText(ctx context.Context) error {
	options := &internal_transformer.SpeechToTextInitializeOptions{
		AudioConfig:  internal_audio.RAPIDA_INTERNAL_AUDIO_CONFIG,
		ModelOptions: t.recognitionOptions(),
		OnTranscript: func(transcript string, confidence float64, language string, isFinal bool) {
			t.OnPacket(t.streamer.Context(), internal_type.TranscriptPacket{
				ContextID:  t.currentTurnId(),
				Text:       transcript,
				Confidence: confidence,
				Language:   language,
				IsFinal:    isFinal,
			})
		},
		OnSpeechStarted: t.onSpeechStarted,
	}

	recognizer, err := t.recognizerFactory(ctx, t.logger, options)
	if err != nil {
		return err
	}
	if err := recognizer.Initialize(); err != nil {
		return err
	}
	t.recognizer = recognizer
	return nil
}

// initializeTextToSpeech opens the synthesis chain. Synthesis failures
// are survivable, a provider that will not initialize is dropped and an
// empty chain just means a silent assistant, so nothing here aborts the
// conversation.
func (t *voiceRequestor) initializeTextToSpeech(ctx context.Context) {
	options := &internal_transformer.TextToSpeechInitializeOptions{
		AudioConfig:  internal_audio.RAPIDA_INTERNAL_AUDIO_CONFIG,
		ModelOptions: t.synthesisOptions(),
		OnSpeech:     t.onSynthesizedSpeech,
		OnComplete:   t.onSynthesisComplete,
	}

	synthesizers, err := t.synthesizerFactory(ctx, t.logger, options)
	if err != nil {
		t.logger.Errorf("synthesis chain construction failed: %v", err)
		return
	}

	live := make([]internal_transformer.TextToSpeechTransformer, 0, len(synthesizers))
	for _, synthesizer := range synthesizers {
		if err := synthesizer.Initialize(); err != nil {
			t.logger.Warnf("synthesizer %s failed to initialize, dropping from chain: %v", synthesizer.Name(), err)
			continue
		}
		live = append(live, synthesizer)
	}
	if len(live) == 0 {
		t.logger.Errorf("no text-to-speech provider available, conversation will be silent")
	}
	t.synthesizers = live
}

// =============================================================================
// Disconnect
// =============================================================================

// Disconnect tears the conversation down exactly once: providers closed,
// call row finalized, client told, recording persisted, transport
// closed. Every exit path of the talk loop funnels here.
func (t *voiceRequestor) Disconnect(ctx context.Context, status internal_entity.CallStatus, reason string) {
	t.endOnce.Do(func() {
		start := time.Now()
		t.setState(stateEnded)

		if t.executor != nil {
			if err := t.executor.Close(ctx, t); err != nil {
				t.logger.Warnf("executor close failed: %v", err)
			}
		}
		if t.recognizer != nil {
			if err := t.recognizer.Close(ctx); err != nil {
				t.logger.Warnf("recognizer close failed: %v", err)
			}
		}
		for _, synthesizer := range t.synthesizers {
			if err := synthesizer.Close(ctx); err != nil {
				t.logger.Warnf("synthesizer %s close failed: %v", synthesizer.Name(), err)
			}
		}

		duration := time.Since(t.startedAt)
		if t.startedAt.IsZero() {
			duration = 0
		}
		if t.services.Calls != nil && t.call.Id != 0 {
			if err := t.services.Calls.Complete(ctx, t.call.Id, status, reason, uint64(duration.Seconds())); err != nil {
				t.logger.Errorf("call %d: completion update failed: %v", t.call.Id, err)
			}
		}

		t.Notify(ctx, &internal_type.ConversationCompletion{Reason: reason, Duration: duration})
		t.persistRecording()

		if err := t.streamer.Close(); err != nil {
			t.logger.Debugf("streamer close: %v", err)
		}
		t.logger.Infof("call %d ended: status=%s reason=%s duration=%s", t.call.Id, status, reason, duration.Round(time.Second))
		t.logger.Benchmark("VoiceRequestor.Disconnect", time.Since(start))
	})
}

// persistRecording writes the dual-track WAVs next to each other under
// the configured recording directory.
func (t *voiceRequestor) persistRecording() {
	if t.recorder == nil {
		return
	}
	userAudio, systemAudio, err := t.recorder.Persist()
	if err != nil {
		t.logger.Errorf("call %d: recording persist failed: %v", t.call.Id, err)
		return
	}

	directory := "recordings"
	if t.cfg != nil && t.cfg.RecordingConfig.Directory != "" {
		directory = t.cfg.RecordingConfig.Directory
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		t.logger.Errorf("recording directory %s: %v", directory, err)
		return
	}

	userPath := filepath.Join(directory, fmt.Sprintf("%d-user.wav", t.call.Id))
	if err := os.WriteFile(userPath, userAudio, 0o644); err != nil {
		t.logger.Errorf("writing %s failed: %v", userPath, err)
	}
	systemPath := filepath.Join(directory, fmt.Sprintf("%d-system.wav", t.call.Id))
	if err := os.WriteFile(systemPath, systemAudio, 0o644); err != nil {
		t.logger.Errorf("writing %s failed: %v", systemPath, err)
	}
	t.logger.Infof("call %d: recording saved under %s", t.call.Id, directory)
}

// =============================================================================
// OnPacket - the session fan-out
// =============================================================================

// OnPacket routes one packet through the session: caller input toward
// recognition and the executor, executor output toward synthesis,
// persistence and the client. It runs on recognizer and executor
// goroutines, so every branch stays non-blocking apart from short
// persistence writes.
func (t *voiceRequestor) OnPacket(ctx context.Context, packet internal_type.Packet) {
	switch payload := packet.(type) {
	case internal_type.UserAudioPacket:
		t.handleUserAudio(ctx, payload)

	case internal_type.UserTextPacket:
		t.acceptUtterance(ctx, payload.Text)

	case internal_type.TranscriptPacket:
		t.handleTranscript(ctx, payload)

	case internal_type.LLMStreamPacket:
		t.handleDelta(ctx, payload)

	case internal_type.StaticPacket:
		t.handleStatic(ctx, payload)

	case internal_type.ToolCallPacket:
		t.handleToolCall(ctx, payload)

	case internal_type.LLMMessagePacket:
		t.handleTurnComplete(ctx, payload)

	case internal_type.ErrorPacket:
		t.handleExecutorError(ctx, payload)

	case internal_type.CompletionPacket:
		t.handleCompletion(ctx, payload)

	case internal_type.InterruptionPacket:
		t.bargeIn(ctx, payload.Source)

	case internal_type.ConversationMetadataPacket:
		t.handleMetadata(ctx, payload)

	case internal_type.MetricPacket:
		for _, metric := range payload.Metrics {
			if metric == nil {
				continue
			}
			t.logger.Debugw("turn metric", "turn", payload.ContextId(), "name", metric.Name, "value", metric.Value)
		}

	default:
		t.logger.Debugf("unhandled packet %T", packet)
	}
}

// handleUserAudio forwards one caller audio batch to the recognizer and
// the recording timeline.
func (t *voiceRequestor) handleUserAudio(ctx context.Context, packet internal_type.UserAudioPacket) {
	if t.sessionEnded() {
		return
	}
	if t.recorder != nil {
		if err := t.recorder.Record(ctx, packet); err != nil {
			t.logger.Debugf("recorder rejected caller audio: %v", err)
		}
	}
	if t.recognizer == nil {
		return
	}
	if err := t.recognizer.Transform(ctx, packet.Audio, &internal_transformer.SpeechToTextOption{ContextId: t.currentTurnId()}); err != nil {
		t.logger.Debugf("recognizer rejected audio chunk: %v", err)
	}
}

// handleTranscript mirrors every non-empty recognition result to the
// client. Only a final result moves the conversation: it interrupts the
// assistant when one is talking, then becomes the next turn. Interim
// results never barge in; endpointing revises them too freely.
func (t *voiceRequestor) handleTranscript(ctx context.Context, packet internal_type.TranscriptPacket) {
	if t.sessionEnded() {
		return
	}
	text := strings.TrimSpace(packet.Text)
	if text == "" {
		return
	}

	t.Notify(ctx, &internal_type.ConversationTranscript{
		Role:    internal_type.MessageRoleUser,
		Content: text,
		IsFinal: packet.IsFinal,
	})
	if !packet.IsFinal {
		return
	}

	if t.getState() == stateSpeaking {
		t.bargeIn(ctx, internal_type.InterruptionSourceWord)
	}
	t.acceptUtterance(ctx, text)
}

// acceptUtterance starts one assistant turn for a finished caller
// utterance. The transcript row lands before the executor sees the text,
// so a crash mid-turn never loses what the caller said.
func (t *voiceRequestor) acceptUtterance(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" || t.sessionEnded() {
		return
	}

	if t.services.Transcripts != nil && t.call.Id != 0 {
		if err := t.services.Transcripts.Append(ctx, t.call.Id, internal_type.MessageRoleUser, text); err != nil {
			t.logger.Warnf("call %d: user transcript append failed: %v", t.call.Id, err)
		}
	}
	t.appendLog(&internal_type.Message{Role: internal_type.MessageRoleUser, Content: text})

	turnId := t.beginTurn()
	t.setState(stateThinking)

	if t.executor == nil {
		return
	}
	if err := t.executor.Execute(ctx, t, internal_type.UserTextPacket{ContextID: turnId, Text: text}); err != nil {
		t.logger.Errorf("executor rejected utterance: %v", err)
	}
}

// bargeIn cuts the assistant off: in-flight synthesis stops delivering,
// queued sentences become stale, the transport discards buffered audio,
// and the executor stops keeping the turn's text.
func (t *voiceRequestor) bargeIn(ctx context.Context, source internal_type.InterruptionSource) {
	t.interrupted.Store(true)

	// Whatever sentence fragment the assembler still holds belongs to the
	// turn being cut; the next turn must not inherit it.
	t.assemblerMu.Lock()
	t.assembler.Flush(ctx)
	t.assemblerMu.Unlock()

	now := time.Now()
	t.Notify(ctx, &internal_type.ConversationInterruption{Source: source, StartAt: now, EndAt: now})
	if t.executor != nil {
		if err := t.executor.Execute(ctx, t, internal_type.InterruptionPacket{
			ContextID: t.currentTurnId(),
			Source:    source,
			StartAt:   now,
			EndAt:     now,
		}); err != nil {
			t.logger.Warnf("executor rejected interruption: %v", err)
		}
	}
}

// onSpeechStarted reports provider voice activity while the assistant is
// talking. It is observability only; word-level transcripts do the
// actual cutting because voice activity alone misfires on echo.
func (t *voiceRequestor) onSpeechStarted() {
	if t.getState() != stateSpeaking {
		return
	}
	now := time.Now()
	t.Notify(t.streamer.Context(), &internal_type.ConversationInterruption{
		Source:  internal_type.InterruptionSourceVad,
		StartAt: now,
		EndAt:   now,
	})
}

// handleDelta mirrors one model delta to the client as a non-final
// assistant transcript, then feeds it through the sentence assembler and
// queues every completed sentence for synthesis.
func (t *voiceRequestor) handleDelta(ctx context.Context, packet internal_type.LLMStreamPacket) {
	if t.sessionEnded() || t.staleTurn(packet.ContextId()) || t.interrupted.Load() {
		return
	}
	if t.getState() == stateThinking {
		t.setState(stateSpeaking)
	}

	t.Notify(ctx, &internal_type.ConversationTranscript{
		Role:    internal_type.MessageRoleAssistant,
		Content: packet.Text,
		IsFinal: false,
	})

	t.assemblerMu.Lock()
	sentences := t.assembler.Assemble(ctx, packet.Text)
	t.assemblerMu.Unlock()

	for _, sentence := range sentences {
		t.enqueueSpeech(&speechUnit{contextId: packet.ContextId(), text: sentence})
	}
}

// handleStatic queues pre-written speech, tool filler lines and spoken
// failure lines. The filler generation snapshot lets the next tool
// result cut exactly this filler and nothing queued after it.
func (t *voiceRequestor) handleStatic(ctx context.Context, packet internal_type.StaticPacket) {
	if t.sessionEnded() || t.staleTurn(packet.ContextId()) || t.interrupted.Load() {
		return
	}
	text := strings.TrimSpace(packet.Text)
	if text == "" {
		return
	}
	if t.getState() == stateThinking {
		t.setState(stateSpeaking)
	}
	t.enqueueSpeech(&speechUnit{
		contextId: packet.ContextId(),
		text:      text,
		static:    true,
		gen:       t.fillerGen.Load(),
	})
}

// handleToolCall advances the filler generation, which silences any
// filler line still queued or playing for this turn, and reports the
// invocation to the client.
func (t *voiceRequestor) handleToolCall(ctx context.Context, packet internal_type.ToolCallPacket) {
	t.fillerGen.Add(1)
	if t.sessionEnded() || t.staleTurn(packet.ContextId()) {
		return
	}
	t.Notify(ctx, &internal_type.ConversationToolCall{
		Name:      packet.Name,
		Arguments: packet.Arguments,
		Result:    packet.Result,
	})
}

// handleTurnComplete closes out a model turn: the assembler remainder is
// queued, then an end-of-turn marker that persists the full assistant
// message once all of it has actually played. A turn that was already
// superseded still gets its marker so its produced text persists, but
// the assembler belongs to the turn that replaced it and is left alone.
func (t *voiceRequestor) handleTurnComplete(ctx context.Context, packet internal_type.LLMMessagePacket) {
	if t.sessionEnded() {
		return
	}

	if !t.staleTurn(packet.ContextId()) {
		t.assemblerMu.Lock()
		remainder := t.assembler.Flush(ctx)
		t.assemblerMu.Unlock()

		if remainder != "" && !t.interrupted.Load() {
			t.enqueueSpeech(&speechUnit{contextId: packet.ContextId(), text: remainder, final: true})
		}
	}

	t.enqueueTurnEnd(&speechUnit{
		contextId: packet.ContextId(),
		endOfTurn: true,
		message:   packet.Message,
	})
}

// completeTurn runs on the speak loop when a turn's end marker surfaces,
// meaning everything the turn queued has played or been dropped. The
// assistant message persists and mirrors as a final transcript even when
// the caller cut the turn short: the model stops producing at the
// interruption, so the message already holds exactly the text that was
// produced, spoken or not.
func (t *voiceRequestor) completeTurn(ctx context.Context, unit *speechUnit) {
	if t.sessionEnded() {
		return
	}

	if message := unit.message; message != nil && message.Content != "" {
		t.appendLog(message)
		if t.services.Transcripts != nil && t.call.Id != 0 {
			if err := t.services.Transcripts.Append(ctx, t.call.Id, internal_type.MessageRoleAssistant, message.Content); err != nil {
				t.logger.Warnf("call %d: assistant transcript append failed: %v", t.call.Id, err)
			}
		}
		t.Notify(ctx, &internal_type.ConversationTranscript{
			Role:    internal_type.MessageRoleAssistant,
			Content: message.Content,
			IsFinal: true,
		})
	}

	// Only the live turn's marker moves the state machine; a superseded
	// turn must not fold its replacement back to listening.
	if t.staleTurn(unit.contextId) {
		return
	}
	switch t.getState() {
	case stateThinking, stateSpeaking:
		t.setState(stateListening)
	}
}

// handleExecutorError surfaces a failed turn to the caller and returns
// the session to listening. Whatever sentence fragment the assembler
// still holds belongs to the failed turn and is discarded.
func (t *voiceRequestor) handleExecutorError(ctx context.Context, packet internal_type.ErrorPacket) {
	if t.sessionEnded() || t.staleTurn(packet.ContextId()) {
		return
	}

	t.assemblerMu.Lock()
	t.assembler.Flush(ctx)
	t.assemblerMu.Unlock()

	t.Notify(ctx, &internal_type.ConversationError{Message: packet.Message})

	switch t.getState() {
	case stateThinking, stateSpeaking:
		t.setState(stateListening)
	}
}

// handleCompletion ends the conversation on the agent's initiative. The
// assembler remainder still gets spoken; teardown waits for the queue to
// drain, capped so a wedged provider cannot hold the call open.
func (t *voiceRequestor) handleCompletion(ctx context.Context, packet internal_type.CompletionPacket) {
	if t.sessionEnded() {
		return
	}
	reason := packet.Reason
	if reason == "" {
		reason = "agent_ended"
	}

	t.assemblerMu.Lock()
	remainder := t.assembler.Flush(ctx)
	t.assemblerMu.Unlock()

	if remainder != "" && !t.interrupted.Load() && !t.staleTurn(packet.ContextId()) {
		t.enqueueSpeech(&speechUnit{contextId: packet.ContextId(), text: remainder, final: true})
	}
	t.shutdownSpeech()

	utils.Go(t.streamer.Context(), func() {
		t.awaitDrain()
		t.Disconnect(context.Background(), internal_entity.CallStatusCompleted, reason)
	})
}

// awaitDrain blocks until queued speech has played, the drain timeout
// expires, or the transport is gone.
func (t *voiceRequestor) awaitDrain() {
	timer := time.NewTimer(completionDrainTimeout)
	defer timer.Stop()
	select {
	case <-t.drained:
	case <-timer.C:
		t.logger.Warnf("call %d: speech drain timed out, ending anyway", t.call.Id)
	case <-t.streamer.Context().Done():
	}
}

// handleMetadata attaches provider metadata to the conversation, most
// importantly the telephony call sid once the media stream reports it.
func (t *voiceRequestor) handleMetadata(ctx context.Context, packet internal_type.ConversationMetadataPacket) {
	for _, metadata := range packet.Metadata {
		if metadata == nil || metadata.Value == "" {
			continue
		}
		if metadata.Key == MetadataKeyCallSid && t.services.Calls != nil && t.call.Id != 0 {
			if err := t.services.Calls.AttachSid(ctx, t.call.Id, metadata.Value); err != nil {
				t.logger.Warnf("call %d: attaching sid failed: %v", t.call.Id, err)
				continue
			}
			t.call.ExternalCallSid = metadata.Value
			continue
		}
		t.logger.Debugw("conversation metadata", "key", metadata.Key, "value", metadata.Value)
	}
}
