// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio_resampler

import (
	"testing"

	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/stretchr/testify/assert"
)

func newTestResampler(t *testing.T) *linearResampler {
	logger, err := commons.NewApplicationLogger()
	assert.NoError(t, err)
	r, err := GetResampler(logger)
	assert.NoError(t, err)
	return r.(*linearResampler)
}

func TestResample_NilConfigs(t *testing.T) {
	r := newTestResampler(t)
	_, err := r.Resample([]byte{0, 0}, nil, internal_audio.NewLinear16khzMonoAudioConfig())
	assert.Error(t, err)

	_, err = r.Resample([]byte{0, 0}, internal_audio.NewLinear16khzMonoAudioConfig(), nil)
	assert.Error(t, err)
}

func TestResample_EmptyInput(t *testing.T) {
	r := newTestResampler(t)
	out, err := r.Resample(nil,
		internal_audio.NewMulaw8khzMonoAudioConfig(),
		internal_audio.NewLinear16khzMonoAudioConfig())
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestResample_SameConfigPassthrough(t *testing.T) {
	r := newTestResampler(t)
	in := internal_audio.SamplesToPcm([]int16{1, 2, 3, 4})
	out, err := r.Resample(in,
		internal_audio.NewLinear16khzMonoAudioConfig(),
		internal_audio.NewLinear16khzMonoAudioConfig())
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestResample_Upsample8kTo16k_DoublesLength(t *testing.T) {
	r := newTestResampler(t)
	in := internal_audio.SamplesToPcm(make([]int16, 80)) // 10ms at 8kHz
	out, err := r.Resample(in,
		&internal_audio.AudioConfig{SampleRate: 8000, AudioFormat: internal_audio.Linear16, Channels: 1},
		internal_audio.NewLinear16khzMonoAudioConfig())
	assert.NoError(t, err)
	assert.Len(t, out, 320) // 160 samples * 2 bytes
}

func TestResample_Downsample16kTo8k_HalvesLength(t *testing.T) {
	r := newTestResampler(t)
	in := internal_audio.SamplesToPcm(make([]int16, 160)) // 10ms at 16kHz
	out, err := r.Resample(in,
		internal_audio.NewLinear16khzMonoAudioConfig(),
		&internal_audio.AudioConfig{SampleRate: 8000, AudioFormat: internal_audio.Linear16, Channels: 1})
	assert.NoError(t, err)
	assert.Len(t, out, 160) // 80 samples * 2 bytes
}

func TestResample_24kTo16k_FloorsLength(t *testing.T) {
	r := newTestResampler(t)
	in := internal_audio.SamplesToPcm(make([]int16, 100))
	out, err := r.Resample(in,
		internal_audio.NewLinear24khzMonoAudioConfig(),
		internal_audio.NewLinear16khzMonoAudioConfig())
	assert.NoError(t, err)
	// floor(100 * 16000 / 24000) = 66 samples
	assert.Len(t, out, 132)
}

func TestResample_ConstantSignalPreserved(t *testing.T) {
	r := newTestResampler(t)
	samples := make([]int16, 80)
	for i := range samples {
		samples[i] = 1000
	}
	out, err := r.Resample(internal_audio.SamplesToPcm(samples),
		&internal_audio.AudioConfig{SampleRate: 8000, AudioFormat: internal_audio.Linear16, Channels: 1},
		internal_audio.NewLinear16khzMonoAudioConfig())
	assert.NoError(t, err)
	for _, s := range internal_audio.PcmToSamples(out) {
		assert.Equal(t, int16(1000), s)
	}
}

func TestResample_MulawToInternal(t *testing.T) {
	r := newTestResampler(t)
	// 10ms of mu-law silence from the telephony edge
	in := make([]byte, 80)
	for i := range in {
		in[i] = 0xFF
	}
	out, err := r.Resample(in,
		internal_audio.NewMulaw8khzMonoAudioConfig(),
		internal_audio.NewLinear16khzMonoAudioConfig())
	assert.NoError(t, err)
	assert.Len(t, out, 320) // decoded to 16-bit then doubled to 16kHz
	for _, s := range internal_audio.PcmToSamples(out) {
		assert.Equal(t, int16(0), s)
	}
}

func TestResample_InternalToMulaw(t *testing.T) {
	r := newTestResampler(t)
	in := internal_audio.SamplesToPcm(make([]int16, 160)) // 10ms at 16kHz
	out, err := r.Resample(in,
		internal_audio.NewLinear16khzMonoAudioConfig(),
		internal_audio.NewMulaw8khzMonoAudioConfig())
	assert.NoError(t, err)
	assert.Len(t, out, 80)
	for _, b := range out {
		assert.Equal(t, byte(0xFF), b)
	}
}
