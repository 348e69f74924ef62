// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package configs

// SpeechConfig selects speech providers for a deployment. The
// synthesizer provider names the primary engine; the fallback chain
// behind it is fixed.
type SpeechConfig struct {
	RecognizerProvider  string `mapstructure:"recognizer_provider" validate:"required,oneof=deepgram google"`
	SynthesizerProvider string `mapstructure:"synthesizer_provider" validate:"required,oneof=elevenlabs google"`
	DefaultVoice        string `mapstructure:"default_voice"`
	DefaultLanguage     string `mapstructure:"default_language"`
}

type RecordingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}
