// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_streamelements

import (
	"fmt"
	"net/url"

	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
)

const (
	STREAMELEMENTS_SPEECH_URL = "https://api.streamelements.com/kappa/v2/speech"

	DefaultVoice = "Brian"
)

type streamelementsOption struct {
	logger  commons.Logger
	mdlOpts utils.Option
}

// NewStreamElementsOption mirrors the other provider constructors. The
// kappa speech endpoint is anonymous so no vault keys are read.
func NewStreamElementsOption(
	logger commons.Logger,
	vaultCredential *internal_transformer.VaultCredential,
	mdlOpts utils.Option) (*streamelementsOption, error) {
	return &streamelementsOption{
		logger:  logger,
		mdlOpts: mdlOpts,
	}, nil
}

// GetEncoding is the decoded output format, not the wire format; the
// endpoint serves MP3 which gets transcoded to the internal pipeline
// format.
func (so *streamelementsOption) GetEncoding() string {
	return "pcm_16000"
}

func (so *streamelementsOption) GetVoice() string {
	return so.mdlOpts.GetStringOr("speak.voice.id", DefaultVoice)
}

// GetTextToSpeechConnectionString builds the speech url for one text
// unit. speak.base_url reroutes through a proxy when a deployment
// fronts streamelements.
func (so *streamelementsOption) GetTextToSpeechConnectionString(text string) string {
	base := so.mdlOpts.GetStringOr("speak.base_url", STREAMELEMENTS_SPEECH_URL)
	params := url.Values{}
	params.Set("voice", so.GetVoice())
	params.Set("text", text)
	return fmt.Sprintf("%s?%s", base, params.Encode())
}
