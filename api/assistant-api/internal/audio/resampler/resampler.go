// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio_resampler

import (
	"fmt"

	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

// GetResampler returns the converter used at the transport edges. Linear
// interpolation is plenty for narrowband speech; telephony audio was 8kHz
// to begin with.
func GetResampler(logger commons.Logger) (internal_type.AudioResampler, error) {
	return &linearResampler{logger: logger}, nil
}

type linearResampler struct {
	logger commons.Logger
}

func (r *linearResampler) Resample(data []byte, from *internal_audio.AudioConfig, to *internal_audio.AudioConfig) ([]byte, error) {
	if from == nil || to == nil {
		return nil, fmt.Errorf("resampler: source and target configs are required")
	}
	if len(data) == 0 {
		return []byte{}, nil
	}
	if from.GetSampleRate() == to.GetSampleRate() && from.GetAudioFormat() == to.GetAudioFormat() {
		return data, nil
	}

	pcm := data
	if from.GetAudioFormat() == internal_audio.MuLaw8 {
		pcm = internal_audio.DecodeMuLaw(data)
	}

	if from.GetSampleRate() != to.GetSampleRate() {
		samples := internal_audio.PcmToSamples(pcm)
		pcm = internal_audio.SamplesToPcm(internal_audio.ResampleLinear(samples, from.GetSampleRate(), to.GetSampleRate()))
	}

	if to.GetAudioFormat() == internal_audio.MuLaw8 {
		pcm = internal_audio.EncodeMuLaw(pcm)
	}
	return pcm, nil
}
