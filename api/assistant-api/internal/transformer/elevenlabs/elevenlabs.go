// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_elevenlabs

import (
	"fmt"
	"net/url"

	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
)

const (
	ELEVENLABS_TTS_URL = "https://api.elevenlabs.io/v1/text-to-speech"

	// ELEVENLABS_VOICE_ID is Rachel, the stock conversational voice.
	ELEVENLABS_VOICE_ID = "21m00Tcm4TlvDq8ikWAM"

	DefaultModel = "eleven_multilingual_v2"
)

type elevenlabsOption struct {
	logger  commons.Logger
	key     string
	mdlOpts utils.Option
}

func NewElevenLabsOption(
	logger commons.Logger,
	vaultCredential *internal_transformer.VaultCredential,
	mdlOpts utils.Option) (*elevenlabsOption, error) {
	cx, ok := vaultCredential.AsMap()["key"]
	if !ok {
		return nil, fmt.Errorf("elevenlabs: illegal vault config")
	}
	return &elevenlabsOption{
		logger:  logger,
		mdlOpts: mdlOpts,
		key:     cx.(string),
	}, nil
}

func (eo *elevenlabsOption) GetKey() string {
	return eo.key
}

// GetEncoding is fixed to the internal pipeline format.
func (eo *elevenlabsOption) GetEncoding() string {
	return "pcm_16000"
}

func (eo *elevenlabsOption) GetVoice() string {
	return eo.mdlOpts.GetStringOr("speak.voice.id", ELEVENLABS_VOICE_ID)
}

func (eo *elevenlabsOption) GetModel() string {
	return eo.mdlOpts.GetStringOr("speak.model", DefaultModel)
}

// GetTextToSpeechConnectionString builds the streaming synthesis url
// for the resolved voice. speak.base_url reroutes through a proxy when
// a deployment fronts elevenlabs.
func (eo *elevenlabsOption) GetTextToSpeechConnectionString() string {
	base := eo.mdlOpts.GetStringOr("speak.base_url", ELEVENLABS_TTS_URL)
	params := url.Values{}
	params.Set("output_format", eo.GetEncoding())
	params.Set("enable_ssml_parsing", "true")
	return fmt.Sprintf("%s/%s/stream?%s", base, eo.GetVoice(), params.Encode())
}

// GetTextToSpeechPayload builds the request body for one text unit.
// Voice settings follow the conversational preset; language_code is
// only sent when the deployment pins one.
func (eo *elevenlabsOption) GetTextToSpeechPayload(text string) map[string]interface{} {
	payload := map[string]interface{}{
		"text":     text,
		"model_id": eo.GetModel(),
		"voice_settings": map[string]interface{}{
			"stability":         0.5,
			"similarity_boost":  0.75,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}
	if language, err := eo.mdlOpts.GetString("speak.language"); err == nil && language != "" {
		payload["language_code"] = language
	}
	return payload
}
