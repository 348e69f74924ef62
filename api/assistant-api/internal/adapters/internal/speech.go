// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package adapter_internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rapidaai/voice/api/assistant-api/config"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	internal_transformer_deepgram "github.com/rapidaai/voice/api/assistant-api/internal/transformer/deepgram"
	internal_transformer_elevenlabs "github.com/rapidaai/voice/api/assistant-api/internal/transformer/elevenlabs"
	internal_transformer_google "github.com/rapidaai/voice/api/assistant-api/internal/transformer/google"
	internal_transformer_streamelements "github.com/rapidaai/voice/api/assistant-api/internal/transformer/streamelements"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
)

// =============================================================================
// Provider selection
// =============================================================================

// defaultRecognizerFactory opens the configured speech-to-text provider.
// Anything but google resolves to deepgram, matching the config
// validation.
func defaultRecognizerFactory(cfg *config.AppConfig) RecognizerFactory {
	return func(ctx context.Context, logger commons.Logger, options *internal_transformer.SpeechToTextInitializeOptions) (internal_transformer.SpeechToTextTransformer, error) {
		if cfg == nil {
			return nil, fmt.Errorf("speech: configuration is required for the recognizer")
		}
		switch cfg.SpeechConfig.RecognizerProvider {
		case "google":
			return internal_transformer_google.NewGoogleSpeechToText(ctx, logger, googleSpeechCredential(cfg), options)
		default:
			return internal_transformer_deepgram.NewDeepgramSpeechToText(ctx, logger,
				internal_transformer.NewVaultCredential(map[string]interface{}{"key": cfg.DeepgramApiKey}), options)
		}
	}
}

// defaultSynthesizerFactory opens the synthesis chain: the configured
// provider first, the alternate provider when its credentials are
// present, and streamelements last because it needs no credentials at
// all. A provider whose construction fails is dropped from the chain
// rather than failing the conversation.
func defaultSynthesizerFactory(cfg *config.AppConfig) SynthesizerFactory {
	return func(ctx context.Context, logger commons.Logger, options *internal_transformer.TextToSpeechInitializeOptions) ([]internal_transformer.TextToSpeechTransformer, error) {
		if cfg == nil {
			return nil, fmt.Errorf("speech: configuration is required for the synthesizer chain")
		}

		// Fallback providers cannot reuse the primary's voice id, so they
		// get the options with the voice stripped and keep only language
		// and format hints.
		fallback := &internal_transformer.TextToSpeechInitializeOptions{
			AudioConfig:  options.AudioConfig,
			ModelOptions: withoutVoice(options.ModelOptions),
			OnSpeech:     options.OnSpeech,
			OnComplete:   options.OnComplete,
		}

		var chain []internal_transformer.TextToSpeechTransformer
		add := func(name string, build func() (internal_transformer.TextToSpeechTransformer, error)) {
			synthesizer, err := build()
			if err != nil {
				logger.Warnf("speech: %s synthesizer unavailable, dropping from chain: %v", name, err)
				return
			}
			chain = append(chain, synthesizer)
		}

		switch cfg.SpeechConfig.SynthesizerProvider {
		case "google":
			add("google", func() (internal_transformer.TextToSpeechTransformer, error) {
				return internal_transformer_google.NewGoogleTextToSpeech(ctx, logger, googleSpeechCredential(cfg), options)
			})
			if cfg.ElevenLabsApiKey != "" {
				add("elevenlabs", func() (internal_transformer.TextToSpeechTransformer, error) {
					return internal_transformer_elevenlabs.NewElevenLabsTextToSpeech(ctx, logger, elevenlabsCredential(cfg), fallback)
				})
			}
		default:
			add("elevenlabs", func() (internal_transformer.TextToSpeechTransformer, error) {
				return internal_transformer_elevenlabs.NewElevenLabsTextToSpeech(ctx, logger, elevenlabsCredential(cfg), options)
			})
			if cfg.GoogleApiKey != "" || cfg.GoogleCredentialsJson != "" {
				add("google", func() (internal_transformer.TextToSpeechTransformer, error) {
					return internal_transformer_google.NewGoogleTextToSpeech(ctx, logger, googleSpeechCredential(cfg), fallback)
				})
			}
		}

		add("streamelements", func() (internal_transformer.TextToSpeechTransformer, error) {
			return internal_transformer_streamelements.NewStreamElementsTextToSpeech(ctx, logger,
				internal_transformer.NewVaultCredential(map[string]interface{}{}), fallback)
		})

		return chain, nil
	}
}

func elevenlabsCredential(cfg *config.AppConfig) *internal_transformer.VaultCredential {
	return internal_transformer.NewVaultCredential(map[string]interface{}{"key": cfg.ElevenLabsApiKey})
}

func googleSpeechCredential(cfg *config.AppConfig) *internal_transformer.VaultCredential {
	return internal_transformer.NewVaultCredential(map[string]interface{}{
		"key":                 cfg.GoogleApiKey,
		"project_id":          cfg.GoogleProjectId,
		"service_account_key": cfg.GoogleCredentialsJson,
	})
}

// withoutVoice copies the model options minus the voice selection.
func withoutVoice(options utils.Option) utils.Option {
	stripped := utils.Option{}
	for key, value := range options {
		if key == "speak.voice.id" {
			continue
		}
		stripped[key] = value
	}
	return stripped
}

// =============================================================================
// Model options
// =============================================================================

// recognitionOptions builds the recognizer's dotted options from the
// agent's language. Provider defaults cover everything else.
func (t *voiceRequestor) recognitionOptions() utils.Option {
	options := utils.Option{}
	if t.agent.Language != "" {
		options["listen.language"] = t.agent.Language
	}
	return options
}

// synthesisOptions builds the synthesizer's dotted options: the agent's
// voice when set, the deployment default otherwise, plus the agent's
// language.
func (t *voiceRequestor) synthesisOptions() utils.Option {
	options := utils.Option{}
	voice := t.agent.VoiceId
	if voice == "" && t.cfg != nil {
		voice = t.cfg.SpeechConfig.DefaultVoice
	}
	if voice != "" {
		options["speak.voice.id"] = voice
	}
	if t.agent.Language != "" {
		options["speak.language"] = t.agent.Language
	}
	return options
}

// =============================================================================
// Synthesis queue
// =============================================================================

// speechBuffer is the unbounded FIFO between the executor's turn
// goroutine and the speak loop. Pushes never block and never drop, so a
// model that is far ahead of the synthesizer stacks up sentences instead
// of losing them; barge-in and turn rotation already discard what the
// session no longer wants spoken.
type speechBuffer struct {
	mu     sync.Mutex
	units  []*speechUnit
	signal chan struct{}
}

func newSpeechBuffer() *speechBuffer {
	return &speechBuffer{signal: make(chan struct{}, 1)}
}

func (b *speechBuffer) push(unit *speechUnit) {
	b.mu.Lock()
	b.units = append(b.units, unit)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// pop blocks until a unit arrives or ctx ends. The second return is
// false only when ctx ended. A nil unit is the shutdown sentinel and is
// returned like any other.
func (b *speechBuffer) pop(ctx context.Context) (*speechUnit, bool) {
	for {
		b.mu.Lock()
		if len(b.units) > 0 {
			unit := b.units[0]
			b.units[0] = nil
			b.units = b.units[1:]
			b.mu.Unlock()
			return unit, true
		}
		b.units = nil
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-b.signal:
		}
	}
}

func (b *speechBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.units)
}

// enqueueSpeech queues one sentence for the speak loop.
func (t *voiceRequestor) enqueueSpeech(unit *speechUnit) {
	t.speechQueue.push(unit)
}

// enqueueTurnEnd queues a turn-closing marker. It rides the same queue
// as the turn's sentences, so it surfaces only after all of them have
// played or been dropped.
func (t *voiceRequestor) enqueueTurnEnd(unit *speechUnit) {
	t.speechQueue.push(unit)
}

// shutdownSpeech queues the nil sentinel that stops the speak loop after
// everything already queued has played.
func (t *voiceRequestor) shutdownSpeech() {
	t.speechQueue.push(nil)
}

// speakLoop is the single consumer of the synthesis queue. Sentences are
// synthesized strictly in order, one at a time, so barge-in only ever
// has to cut one in-flight unit.
func (t *voiceRequestor) speakLoop(ctx context.Context) {
	for {
		unit, ok := t.speechQueue.pop(ctx)
		if !ok {
			return
		}
		if unit == nil {
			t.signalDrained()
			return
		}
		if unit.endOfTurn {
			t.completeTurn(ctx, unit)
			continue
		}
		if t.shouldDrop(unit) {
			continue
		}
		t.speak(ctx, unit)
	}
}

// shouldDrop reports whether a queued unit is no longer worth speaking:
// the session ended, the caller barged in, the turn was superseded, or a
// tool result landed and cut the filler queued before it.
func (t *voiceRequestor) shouldDrop(unit *speechUnit) bool {
	if t.sessionEnded() {
		return true
	}
	if t.interrupted.Load() {
		return true
	}
	if t.staleTurn(unit.contextId) {
		return true
	}
	if unit.static && unit.gen < t.fillerGen.Load() {
		return true
	}
	return false
}

// speak synthesizes one unit, walking the provider chain until one of
// them delivers audio. A provider error means no audio went out for this
// text, so the next provider retries the whole unit; an interruption
// mid-stream does not error and is not retried.
func (t *voiceRequestor) speak(ctx context.Context, unit *speechUnit) {
	if len(t.synthesizers) == 0 {
		t.logger.Warnf("no synthesizer available, dropping %q", unit.text)
		return
	}

	t.currentUnit.Store(unit)
	defer t.currentUnit.Store(nil)

	start := time.Now()
	options := &internal_transformer.TextToSpeechOption{ContextId: unit.contextId, IsComplete: unit.final}
	for _, synthesizer := range t.synthesizers {
		if t.shouldDrop(unit) {
			return
		}
		err := synthesizer.Transform(ctx, unit.text, options)
		if err == nil {
			t.logger.Benchmark("VoiceRequestor.speak", time.Since(start))
			return
		}
		t.logger.Warnf("synthesizer %s produced no audio, trying next: %v", synthesizer.Name(), err)
	}
	t.logger.Errorf("every synthesizer failed for %q", unit.text)
}

// onSynthesizedSpeech receives provider audio for the unit currently
// being spoken. Superseded units reject their audio, which aborts the
// provider's chunk stream without marking the provider failed.
func (t *voiceRequestor) onSynthesizedSpeech(contextId string, audio []byte) error {
	unit := t.currentUnit.Load()
	if unit == nil || t.shouldDrop(unit) {
		return fmt.Errorf("speech unit superseded")
	}
	if t.recorder != nil {
		if err := t.recorder.Record(t.streamer.Context(), internal_type.TextToSpeechAudioPacket{
			ContextID:  contextId,
			AudioChunk: audio,
		}); err != nil {
			t.logger.Debugf("recorder rejected synthesized audio: %v", err)
		}
	}
	return t.streamer.Send(&internal_type.ConversationAssistantMessage{Audio: audio, Time: time.Now()})
}

func (t *voiceRequestor) onSynthesisComplete(contextId string) error {
	t.logger.Debugf("synthesis complete for turn %s", contextId)
	return nil
}
