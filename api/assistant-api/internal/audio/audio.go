// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_audio defines the audio formats flowing through the
// engine. Everything between the transport edges runs in the internal
// format: 16-bit linear PCM, 16kHz, mono, little-endian.
package internal_audio

// AudioFormat enumerates the wire encodings the engine understands.
type AudioFormat int32

const (
	Linear16 AudioFormat = 0 // 16-bit linear PCM, little-endian
	MuLaw8   AudioFormat = 1 // 8-bit G.711 mu-law
)

func (f AudioFormat) String() string {
	switch f {
	case MuLaw8:
		return "mulaw"
	default:
		return "linear16"
	}
}

// AudioConfig describes one concrete audio format.
type AudioConfig struct {
	SampleRate  int32
	AudioFormat AudioFormat
	Channels    int32
}

func (c *AudioConfig) GetSampleRate() int32 {
	if c == nil {
		return 0
	}
	return c.SampleRate
}

func (c *AudioConfig) GetAudioFormat() AudioFormat {
	if c == nil {
		return Linear16
	}
	return c.AudioFormat
}

func (c *AudioConfig) GetChannels() int32 {
	if c == nil {
		return 0
	}
	return c.Channels
}

// BytesPerSample returns the storage size of one sample in this format.
func (c *AudioConfig) BytesPerSample() int {
	if c.GetAudioFormat() == MuLaw8 {
		return 1
	}
	return 2
}

func NewLinear16khzMonoAudioConfig() *AudioConfig {
	return &AudioConfig{SampleRate: 16000, AudioFormat: Linear16, Channels: 1}
}

func NewLinear24khzMonoAudioConfig() *AudioConfig {
	return &AudioConfig{SampleRate: 24000, AudioFormat: Linear16, Channels: 1}
}

func NewMulaw8khzMonoAudioConfig() *AudioConfig {
	return &AudioConfig{SampleRate: 8000, AudioFormat: MuLaw8, Channels: 1}
}

// RAPIDA_INTERNAL_AUDIO_CONFIG is the format every pipeline stage between
// the transport edges speaks. Transports resample to and from it.
var RAPIDA_INTERNAL_AUDIO_CONFIG = NewLinear16khzMonoAudioConfig()
