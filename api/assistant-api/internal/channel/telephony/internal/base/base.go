// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_telephony_base

import (
	"encoding/base64"

	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	internal_audio_resampler "github.com/rapidaai/voice/api/assistant-api/internal/audio/resampler"
	channel_base "github.com/rapidaai/voice/api/assistant-api/internal/channel/base"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

// TelephonyOption configures a BaseTelephonyStreamer.
type TelephonyOption func(*telephonyConfig)

type telephonyConfig struct {
	// sourceAudioConfig is the native audio format of the telephony
	// provider. Defaults to the internal format (linear16 16kHz) if nil.
	sourceAudioConfig *internal_audio.AudioConfig

	// baseOpts are forwarded to channel_base.NewBaseStreamer.
	baseOpts []channel_base.Option
}

// WithSourceAudioConfig sets the native audio format of the telephony
// provider, e.g. µ-law 8kHz for Twilio media streams. It drives the edge
// codecs only; buffering always happens in the internal format.
func WithSourceAudioConfig(cfg *internal_audio.AudioConfig) TelephonyOption {
	return func(c *telephonyConfig) { c.sourceAudioConfig = cfg }
}

// WithBaseOption appends one or more channel_base.Option to the underlying
// BaseStreamer configuration. Use this for advanced overrides (channel
// sizes, explicit thresholds, etc.).
func WithBaseOption(opts ...channel_base.Option) TelephonyOption {
	return func(c *telephonyConfig) { c.baseOpts = append(c.baseOpts, opts...) }
}

// ============================================================================
// BaseTelephonyStreamer — telephony-specific base that embeds BaseStreamer
// ============================================================================

// BaseTelephonyStreamer embeds channel_base.BaseStreamer for common buffer,
// channel, and lifecycle management. It adds telephony-specific concerns:
// the resolved agent and call, the audio resampler between the provider's
// native format and the internal one, and the base64 media encoder.
//
// Concrete telephony streamers (Twilio today) embed this struct and only
// implement transport-specific I/O logic.
type BaseTelephonyStreamer struct {
	channel_base.BaseStreamer

	agent *internal_entity.Agent
	call  *internal_entity.Call

	resampler internal_type.AudioResampler
	encoder   *base64.Encoding

	// sourceAudioConfig is the format the provider puts on the wire after
	// base64 decoding (µ-law 8kHz for Twilio). ResampleToInternal and
	// ResampleFromInternal convert between it and the internal format at
	// the transport edges; everything in between is linear16 16kHz.
	sourceAudioConfig *internal_audio.AudioConfig
}

// NewBaseTelephonyStreamer builds the shared telephony base around a
// resolved agent and call. Input batching and output framing are derived
// from the internal format because conversion to and from the provider's
// native format happens at the socket, not in the buffers.
//
// Example:
//
//	base := NewBaseTelephonyStreamer(logger, agent, call,
//	    WithSourceAudioConfig(internal_audio.NewMulaw8khzMonoAudioConfig()),
//	)
func NewBaseTelephonyStreamer(
	logger commons.Logger,
	agent *internal_entity.Agent,
	call *internal_entity.Call,
	opts ...TelephonyOption,
) BaseTelephonyStreamer {
	tc := telephonyConfig{}
	for _, opt := range opts {
		opt(&tc)
	}

	sourceAudioCfg := tc.sourceAudioConfig
	if sourceAudioCfg == nil {
		sourceAudioCfg = internal_audio.RAPIDA_INTERNAL_AUDIO_CONFIG
	}

	baseOpts := []channel_base.Option{
		channel_base.WithInputAudioConfig(internal_audio.RAPIDA_INTERNAL_AUDIO_CONFIG),
		channel_base.WithOutputAudioConfig(internal_audio.RAPIDA_INTERNAL_AUDIO_CONFIG),
	}
	baseOpts = append(baseOpts, tc.baseOpts...)

	resampler, _ := internal_audio_resampler.GetResampler(logger)
	return BaseTelephonyStreamer{
		BaseStreamer:      channel_base.NewBaseStreamer(logger, baseOpts...),
		agent:             agent,
		call:              call,
		resampler:         resampler,
		encoder:           base64.StdEncoding,
		sourceAudioConfig: sourceAudioCfg,
	}
}

// ============================================================================
// Telephony helpers
// ============================================================================

// ResampleToInternal converts raw audio from the provider's native format
// to the internal one (linear16 16kHz). On a conversion failure the raw
// bytes are forwarded so the call degrades instead of going silent.
func (base *BaseTelephonyStreamer) ResampleToInternal(audio []byte) []byte {
	resampled, err := base.resampler.Resample(audio, base.sourceAudioConfig, internal_audio.RAPIDA_INTERNAL_AUDIO_CONFIG)
	if err != nil {
		base.Logger.Warnw("Failed to resample input audio, forwarding raw bytes",
			"error", err.Error(),
			"source_format", base.sourceAudioConfig.GetAudioFormat(),
			"source_rate", base.sourceAudioConfig.GetSampleRate(),
		)
		return audio
	}
	return resampled
}

// ResampleFromInternal converts synthesized audio from the internal format
// to the provider's native one for the wire.
func (base *BaseTelephonyStreamer) ResampleFromInternal(audio []byte) []byte {
	resampled, err := base.resampler.Resample(audio, internal_audio.RAPIDA_INTERNAL_AUDIO_CONFIG, base.sourceAudioConfig)
	if err != nil {
		base.Logger.Warnw("Failed to resample output audio, forwarding raw bytes",
			"error", err.Error(),
			"target_format", base.sourceAudioConfig.GetAudioFormat(),
			"target_rate", base.sourceAudioConfig.GetSampleRate(),
		)
		return audio
	}
	return resampled
}

// Agent returns the agent resolved for this call.
func (base *BaseTelephonyStreamer) Agent() *internal_entity.Agent {
	return base.agent
}

// Call returns the persisted call row behind this stream.
func (base *BaseTelephonyStreamer) Call() *internal_entity.Call {
	return base.call
}

// CallId returns the call row id, 0 when the call could not be resolved.
func (base *BaseTelephonyStreamer) CallId() uint64 {
	if base.call == nil {
		return 0
	}
	return base.call.Id
}

// Encoder returns the base64 encoder used for media payloads.
func (base *BaseTelephonyStreamer) Encoder() *base64.Encoding {
	return base.encoder
}

// Resampler returns the audio resampler.
func (base *BaseTelephonyStreamer) Resampler() internal_type.AudioResampler {
	return base.resampler
}

// SourceAudioConfig returns the native audio format of the telephony
// provider.
func (base *BaseTelephonyStreamer) SourceAudioConfig() *internal_audio.AudioConfig {
	return base.sourceAudioConfig
}

// CreateConnectionRequest builds the initial ConversationInitialization
// message announcing the resolved agent.
func (base *BaseTelephonyStreamer) CreateConnectionRequest() *internal_type.ConversationInitialization {
	if base.agent == nil {
		return &internal_type.ConversationInitialization{}
	}
	return &internal_type.ConversationInitialization{
		AgentId:   base.agent.Id,
		AgentName: base.agent.Name,
	}
}
