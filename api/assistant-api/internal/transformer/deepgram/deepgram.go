// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_deepgram

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
)

const (
	DEEPGRAM_LISTEN_URL = "wss://api.deepgram.com/v1/listen"

	DefaultModel       = "nova-2"
	DefaultLanguage    = "en-US"
	DefaultEndpointing = "300"
)

type deepgramOption struct {
	logger  commons.Logger
	key     string
	mdlOpts utils.Option
}

func NewDeepgramOption(
	logger commons.Logger,
	vaultCredential *internal_transformer.VaultCredential,
	mdlOpts utils.Option) (*deepgramOption, error) {
	cx, ok := vaultCredential.AsMap()["key"]
	if !ok {
		return nil, fmt.Errorf("deepgram: illegal vault config")
	}
	return &deepgramOption{
		logger:  logger,
		mdlOpts: mdlOpts,
		key:     cx.(string),
	}, nil
}

func (dg *deepgramOption) GetKey() string {
	return dg.key
}

// GetEncoding is fixed to the internal pipeline format; deepgram is fed
// raw linear16 at 16kHz regardless of the transport format.
func (dg *deepgramOption) GetEncoding() string {
	return "linear16"
}

// SpeechToTextOptions is the resolved parameter set for one live
// transcription connection.
type SpeechToTextOptions struct {
	Model          string
	Language       string
	Channels       int
	SmartFormat    bool
	InterimResults bool
	FillerWords    bool
	VadEvents      bool
	Endpointing    string
	Punctuate      bool
	NoDelay        bool
	Encoding       string
	SampleRate     int
	Diarize        bool
	Multichannel   bool
	Keywords       []string
	Keyterm        []string
}

// SpeechToTextOptions resolves defaults and listen.* overrides.
// Encoding and sample rate stay hardcoded to the internal format.
func (dg *deepgramOption) SpeechToTextOptions() *SpeechToTextOptions {
	opts := &SpeechToTextOptions{
		Model:          DefaultModel,
		Language:       DefaultLanguage,
		Channels:       1,
		SmartFormat:    true,
		InterimResults: true,
		FillerWords:    true,
		VadEvents:      true,
		Endpointing:    DefaultEndpointing,
		Punctuate:      true,
		NoDelay:        true,
		Encoding:       dg.GetEncoding(),
		SampleRate:     16000,
		Diarize:        false,
		Multichannel:   false,
	}

	if model, err := dg.mdlOpts.GetString("listen.model"); err == nil {
		opts.Model = model
	}
	if language, err := dg.mdlOpts.GetString("listen.language"); err == nil {
		opts.Language = language
	}
	if smartFormat, err := dg.mdlOpts.GetBool("listen.smart_format"); err == nil {
		opts.SmartFormat = smartFormat
	}
	if interim, err := dg.mdlOpts.GetBool("listen.interim_results"); err == nil {
		opts.InterimResults = interim
	}
	if fillerWords, err := dg.mdlOpts.GetBool("listen.filler_words"); err == nil {
		opts.FillerWords = fillerWords
	}
	if vadEvents, err := dg.mdlOpts.GetBool("listen.vad_events"); err == nil {
		opts.VadEvents = vadEvents
	}
	if endpointing, err := dg.mdlOpts.GetString("listen.endpointing"); err == nil {
		opts.Endpointing = endpointing
	}
	if punctuate, err := dg.mdlOpts.GetBool("listen.punctuate"); err == nil {
		opts.Punctuate = punctuate
	}
	if diarize, err := dg.mdlOpts.GetBool("listen.diarize"); err == nil {
		opts.Diarize = diarize
	}
	if multichannel, err := dg.mdlOpts.GetBool("listen.multichannel"); err == nil {
		opts.Multichannel = multichannel
	}

	// nova-3 renamed keyword boosting to keyterm prompting; older models
	// still take keywords.
	if keywords, err := dg.mdlOpts.GetStringSlice("listen.keyword"); err == nil && len(keywords) > 0 {
		if strings.HasPrefix(opts.Model, "nova-3") {
			opts.Keyterm = keywords
		} else {
			opts.Keywords = keywords
		}
	}
	return opts
}

// GetSpeechToTextConnectionString builds the live transcription url with
// every resolved option as a query parameter.
func (dg *deepgramOption) GetSpeechToTextConnectionString() string {
	opts := dg.SpeechToTextOptions()

	params := url.Values{}
	params.Set("model", opts.Model)
	params.Set("language", opts.Language)
	params.Set("channels", strconv.Itoa(opts.Channels))
	params.Set("encoding", opts.Encoding)
	params.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	params.Set("smart_format", strconv.FormatBool(opts.SmartFormat))
	params.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	params.Set("filler_words", strconv.FormatBool(opts.FillerWords))
	params.Set("vad_events", strconv.FormatBool(opts.VadEvents))
	params.Set("endpointing", opts.Endpointing)
	params.Set("punctuate", strconv.FormatBool(opts.Punctuate))
	params.Set("no_delay", strconv.FormatBool(opts.NoDelay))
	if opts.Diarize {
		params.Set("diarize", "true")
	}
	if opts.Multichannel {
		params.Set("multichannel", "true")
	}
	for _, keyword := range opts.Keywords {
		params.Add("keywords", keyword)
	}
	for _, keyterm := range opts.Keyterm {
		params.Add("keyterm", keyterm)
	}

	return fmt.Sprintf("%s?%s", DEEPGRAM_LISTEN_URL, params.Encode())
}
