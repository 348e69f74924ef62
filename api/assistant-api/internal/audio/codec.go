// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/zaf/g711"
)

// EncodeMuLaw compresses 16-bit little-endian PCM to G.711 mu-law,
// halving the byte count.
func EncodeMuLaw(lpcm []byte) []byte {
	return g711.EncodeUlaw(lpcm)
}

// DecodeMuLaw expands G.711 mu-law to 16-bit little-endian PCM.
func DecodeMuLaw(ulaw []byte) []byte {
	return g711.DecodeUlaw(ulaw)
}

// PcmToSamples reinterprets little-endian PCM bytes as 16-bit samples.
// A trailing odd byte is dropped.
func PcmToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// SamplesToPcm renders 16-bit samples as little-endian PCM bytes.
func SamplesToPcm(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// DurationMs returns the playback duration of raw audio in cfg's format.
func DurationMs(data []byte, cfg *AudioConfig) int64 {
	if cfg.GetSampleRate() == 0 || cfg.GetChannels() == 0 {
		return 0
	}
	samples := len(data) / cfg.BytesPerSample() / int(cfg.GetChannels())
	return int64(samples) * 1000 / int64(cfg.GetSampleRate())
}

// Base64MulawToPCM16 decodes a base64 mu-law payload (the Twilio media
// frame format) and resamples it from fromRate to toRate linear PCM.
func Base64MulawToPCM16(payload string, fromRate, toRate int32) ([]byte, error) {
	ulaw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("mulaw payload is not valid base64: %w", err)
	}
	pcm := DecodeMuLaw(ulaw)
	if fromRate == toRate {
		return pcm, nil
	}
	return SamplesToPcm(ResampleLinear(PcmToSamples(pcm), fromRate, toRate)), nil
}

// PCM16ToBase64Mulaw resamples linear PCM from fromRate to toRate, then
// compands and base64-encodes it for a telephony media frame.
func PCM16ToBase64Mulaw(pcm []byte, fromRate, toRate int32) string {
	if fromRate != toRate {
		pcm = SamplesToPcm(ResampleLinear(PcmToSamples(pcm), fromRate, toRate))
	}
	return base64.StdEncoding.EncodeToString(EncodeMuLaw(pcm))
}

// ResampleLinear converts sample rate by linear interpolation. Output
// length is floor(n * to / from); identity when the rates match.
func ResampleLinear(in []int16, fromRate, toRate int32) []int16 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	out := make([]int16, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(in[idx])*(1-frac) + float64(in[idx+1])*frac)
	}
	return out
}
