// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_elevenlabs

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
)

// audioChunkSize is the read granularity for streamed synthesis; at
// 16kHz PCM16 one chunk is 128ms of speech.
const audioChunkSize = 4096

type elevenlabsTextToSpeech struct {
	*elevenlabsOption
	mu      sync.Mutex
	ctx     context.Context
	logger  commons.Logger
	client  *resty.Client
	options *internal_transformer.TextToSpeechInitializeOptions
}

func NewElevenLabsTextToSpeech(
	ctx context.Context,
	logger commons.Logger,
	credential *internal_transformer.VaultCredential,
	opts *internal_transformer.TextToSpeechInitializeOptions,
) (internal_transformer.TextToSpeechTransformer, error) {
	elevenlabsOpts, err := NewElevenLabsOption(logger, credential, opts.ModelOptions)
	if err != nil {
		logger.Errorf("elevenlabs-tts: initializing elevenlabs failed %+v", err)
		return nil, err
	}

	return &elevenlabsTextToSpeech{
		ctx:              ctx,
		logger:           logger,
		elevenlabsOption: elevenlabsOpts,
		options:          opts,
	}, nil
}

// Name returns the name of this transformer.
func (*elevenlabsTextToSpeech) Name() string {
	return "elevenlabs-text-to-speech"
}

func (et *elevenlabsTextToSpeech) Initialize() error {
	et.mu.Lock()
	defer et.mu.Unlock()

	et.client = resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("xi-api-key", et.GetKey()).
		SetHeader("Content-Type", "application/json")
	return nil
}

// Transform synthesizes one text unit and streams the audio back via
// OnSpeech. An error return means no audio was delivered for this text
// and a fallback provider may retry it; once the first chunk has gone
// out the text counts as spoken and later read failures only truncate.
func (et *elevenlabsTextToSpeech) Transform(ctx context.Context, in string, opts *internal_transformer.TextToSpeechOption) error {
	et.mu.Lock()
	client := et.client
	et.mu.Unlock()

	if client == nil {
		return fmt.Errorf("elevenlabs-tts: client is not initialized")
	}

	if in != "" {
		resp, err := client.R().
			SetContext(ctx).
			SetBody(et.GetTextToSpeechPayload(in)).
			SetDoNotParseResponse(true).
			Post(et.GetTextToSpeechConnectionString())
		if err != nil {
			return fmt.Errorf("elevenlabs-tts: synthesis request failed: %w", err)
		}
		body := resp.RawBody()
		defer body.Close()

		if resp.StatusCode() >= 400 {
			snippet, _ := io.ReadAll(io.LimitReader(body, 200))
			return fmt.Errorf("elevenlabs-tts: synthesis failed with status %d: %s", resp.StatusCode(), string(snippet))
		}

		var total int
		buf := make([]byte, audioChunkSize)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				total += n
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if cbErr := et.options.OnSpeech(opts.ContextId, chunk); cbErr != nil {
					et.logger.Warnf("elevenlabs-tts: speech callback rejected chunk: %v", cbErr)
					break
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				if total == 0 {
					return fmt.Errorf("elevenlabs-tts: failed to read audio stream: %w", err)
				}
				et.logger.Warnf("elevenlabs-tts: audio stream truncated after %d bytes: %v", total, err)
				break
			}
		}
		if total == 0 {
			return fmt.Errorf("elevenlabs-tts: no audio produced for text")
		}
	}

	if opts.IsComplete && et.options.OnComplete != nil {
		return et.options.OnComplete(opts.ContextId)
	}
	return nil
}

func (et *elevenlabsTextToSpeech) Close(ctx context.Context) error {
	et.mu.Lock()
	defer et.mu.Unlock()
	et.client = nil
	return nil
}
