// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio_recorder

import (
	"context"

	internal_recorder "github.com/rapidaai/voice/api/assistant-api/internal/audio/recorder/internal"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
)

type AudioRecorderType string

const (
	AudioRecorderDefault    AudioRecorderType = "default"
	OptionsKeyAudioRecorder string            = "conversation.audio.recorder"
)

func GetAudioRecorder(
	context context.Context,
	logger commons.Logger,
	options utils.Option,
) (internal_type.Recorder, error) {
	typ, _ := options.GetString(OptionsKeyAudioRecorder)
	switch AudioRecorderType(typ) {
	default:
		return internal_recorder.NewDefaultAudioRecorder(logger)
	}
}
