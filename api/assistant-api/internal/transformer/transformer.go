// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_transformer defines the contract between the engine
// and speech providers. A transformer owns one provider connection for
// one conversation: Initialize connects, Transform forwards media or
// text, Close tears the connection down. Provider results come back on
// the callbacks carried by the initialize options, never on Transform
// return values, because every supported provider streams responses
// asynchronously.
package internal_transformer

import (
	"context"

	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	"github.com/rapidaai/voice/pkg/utils"
)

// =============================================================================
// Credentials
// =============================================================================

// VaultCredential is a provider secret bag resolved from configuration.
// Providers read the keys they need ("key", "project_id", ...) and fail
// initialization with an illegal vault config error when one is missing.
type VaultCredential struct {
	value map[string]interface{}
}

func NewVaultCredential(value map[string]interface{}) *VaultCredential {
	return &VaultCredential{value: value}
}

// AsMap returns the raw credential values. Never nil.
func (vc *VaultCredential) AsMap() map[string]interface{} {
	if vc == nil || vc.value == nil {
		return map[string]interface{}{}
	}
	return vc.value
}

// =============================================================================
// Speech to text
// =============================================================================

// SpeechToTextInitializeOptions carries everything a recognizer needs
// before its connection is opened.
type SpeechToTextInitializeOptions struct {
	// AudioConfig is the format of the audio handed to Transform.
	AudioConfig *internal_audio.AudioConfig

	// ModelOptions are dotted provider options ("listen.language",
	// "listen.model", ...) merged from deployment config and agent
	// overrides.
	ModelOptions utils.Option

	// OnTranscript receives every recognition result, interim and
	// final. Empty transcripts are filtered by the provider.
	OnTranscript func(transcript string, confidence float64, language string, isFinal bool)

	// OnSpeechStarted fires on provider voice-activity events, when the
	// provider supports them. Used for barge-in detection.
	OnSpeechStarted func()
}

// SpeechToTextOption carries per-chunk options for Transform.
type SpeechToTextOption struct {
	ContextId string
}

// SpeechToTextTransformer is one provider recognition session.
type SpeechToTextTransformer interface {
	Name() string

	// Initialize opens the provider connection and starts the response
	// listener. The conversation aborts when this fails.
	Initialize() error

	// Transform forwards one audio chunk. It never blocks on provider
	// responses; results arrive via OnTranscript.
	Transform(ctx context.Context, in []byte, opts *SpeechToTextOption) error

	// Close sends the provider's graceful termination message, if it
	// has one, and releases the connection.
	Close(ctx context.Context) error
}

// =============================================================================
// Text to speech
// =============================================================================

// TextToSpeechInitializeOptions carries everything a synthesizer needs
// before its connection is opened.
type TextToSpeechInitializeOptions struct {
	// AudioConfig is the format synthesized audio must be delivered in.
	AudioConfig *internal_audio.AudioConfig

	// ModelOptions are dotted provider options ("speak.voice.id",
	// "speak.model", ...).
	ModelOptions utils.Option

	// OnSpeech receives synthesized audio chunks for a context as they
	// arrive.
	OnSpeech func(contextId string, audio []byte) error

	// OnComplete fires once all audio for a context has been delivered.
	OnComplete func(contextId string) error
}

// TextToSpeechOption carries per-utterance options for Transform.
// ContextId groups the sentences of one assistant turn; IsComplete
// marks the final sentence of the turn.
type TextToSpeechOption struct {
	ContextId  string
	IsComplete bool
}

// TextToSpeechTransformer is one provider synthesis session.
type TextToSpeechTransformer interface {
	Name() string

	Initialize() error

	// Transform submits one text unit for synthesis. Audio arrives via
	// OnSpeech; a non-nil error means the provider produced nothing for
	// this text and a fallback may retry it.
	Transform(ctx context.Context, in string, opts *TextToSpeechOption) error

	Close(ctx context.Context) error
}
