// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeMuLaw_Silence(t *testing.T) {
	pcm := SamplesToPcm([]int16{0, 0, 0, 0})
	encoded := EncodeMuLaw(pcm)

	assert.Len(t, encoded, 4)
	for _, b := range encoded {
		assert.Equal(t, byte(0xFF), b)
	}
}

func TestDecodeMuLaw_Silence(t *testing.T) {
	decoded := DecodeMuLaw([]byte{0xFF, 0xFF})
	samples := PcmToSamples(decoded)

	assert.Equal(t, []int16{0, 0}, samples)
}

func TestDecodeMuLaw_NegativeZero(t *testing.T) {
	decoded := PcmToSamples(DecodeMuLaw([]byte{0x7F}))
	assert.Equal(t, int16(0), decoded[0])
}

func TestMuLaw_RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 16000, -16000, 32000, -32000}
	rt := PcmToSamples(DecodeMuLaw(EncodeMuLaw(SamplesToPcm(samples))))

	assert.Len(t, rt, len(samples))
	for i, orig := range samples {
		// mu-law quantization error grows with amplitude
		tolerance := int32(32)
		if mag := int32(orig); mag > 512 || mag < -512 {
			if mag < 0 {
				mag = -mag
			}
			tolerance = mag / 16
		}
		diff := int32(rt[i]) - int32(orig)
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqualf(t, diff, tolerance, "sample %d: %d -> %d", i, orig, rt[i])
	}
}

func TestMuLaw_CompressionRatio(t *testing.T) {
	pcm := SamplesToPcm(make([]int16, 160)) // 20ms at 8kHz
	encoded := EncodeMuLaw(pcm)
	assert.Len(t, encoded, 160)

	decoded := DecodeMuLaw(encoded)
	assert.Len(t, decoded, 320)
}

func TestPcmSampleConversion_RoundTrip(t *testing.T) {
	samples := []int16{-32768, -1, 0, 1, 32767}
	assert.Equal(t, samples, PcmToSamples(SamplesToPcm(samples)))
}

func TestPcmToSamples_OddTrailingByte(t *testing.T) {
	samples := PcmToSamples([]byte{0x01, 0x00, 0xFF})
	assert.Equal(t, []int16{1}, samples)
}

func TestDurationMs(t *testing.T) {
	tests := []struct {
		name string
		data int
		cfg  *AudioConfig
		want int64
	}{
		{"100ms linear16 16khz", 3200, NewLinear16khzMonoAudioConfig(), 100},
		{"100ms mulaw 8khz", 800, NewMulaw8khzMonoAudioConfig(), 100},
		{"1s linear16 16khz", 32000, NewLinear16khzMonoAudioConfig(), 1000},
		{"empty", 0, NewLinear16khzMonoAudioConfig(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DurationMs(make([]byte, tt.data), tt.cfg))
		})
	}
}

func TestResampleLinear_Lengths(t *testing.T) {
	tests := []struct {
		name     string
		in       int
		from, to int32
		want     int
	}{
		{"8k to 16k doubles", 160, 8000, 16000, 320},
		{"16k to 8k halves", 320, 16000, 8000, 160},
		{"24k to 16k", 240, 24000, 16000, 160},
		{"identity", 160, 16000, 16000, 160},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ResampleLinear(make([]int16, tt.in), tt.from, tt.to)
			assert.Len(t, out, tt.want)
		})
	}
}

func TestResampleLinear_PreservesConstantSignal(t *testing.T) {
	in := make([]int16, 160)
	for i := range in {
		in[i] = 1000
	}
	for _, s := range ResampleLinear(in, 8000, 16000) {
		assert.Equal(t, int16(1000), s)
	}
}

func TestBase64Mulaw_RoundTrip(t *testing.T) {
	samples := make([]int16, 160) // 20ms at 8kHz
	for i := range samples {
		samples[i] = int16(i * 100)
	}
	payload := PCM16ToBase64Mulaw(SamplesToPcm(samples), 8000, 8000)

	pcm, err := Base64MulawToPCM16(payload, 8000, 8000)
	assert.NoError(t, err)
	rt := PcmToSamples(pcm)
	assert.Len(t, rt, len(samples))
	for i := range samples {
		diff := int32(rt[i]) - int32(samples[i])
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, int32(1024), "sample %d", i)
	}
}

func TestBase64MulawToPCM16_Upsamples(t *testing.T) {
	payload := PCM16ToBase64Mulaw(make([]byte, 320), 8000, 8000)

	pcm, err := Base64MulawToPCM16(payload, 8000, 16000)
	assert.NoError(t, err)
	assert.Len(t, pcm, 640) // 160 mulaw samples -> 320 at 16k -> 2 bytes each
}

func TestBase64MulawToPCM16_InvalidBase64(t *testing.T) {
	_, err := Base64MulawToPCM16("not-base64!!!", 8000, 16000)
	assert.Error(t, err)
}

func TestAudioConfig_NilSafeGetters(t *testing.T) {
	var cfg *AudioConfig
	assert.Equal(t, int32(0), cfg.GetSampleRate())
	assert.Equal(t, Linear16, cfg.GetAudioFormat())
	assert.Equal(t, int32(0), cfg.GetChannels())
}

func TestAudioFormat_String(t *testing.T) {
	assert.Equal(t, "linear16", Linear16.String())
	assert.Equal(t, "mulaw", MuLaw8.String())
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkBase64MulawToPCM16(b *testing.B) {
	payload := PCM16ToBase64Mulaw(make([]byte, 320), 8000, 8000) // one 20ms telephony frame
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Base64MulawToPCM16(payload, 8000, 16000)
	}
}

func BenchmarkResampleLinear_16kTo8k(b *testing.B) {
	in := make([]int16, 320)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ResampleLinear(in, 16000, 8000)
	}
}
