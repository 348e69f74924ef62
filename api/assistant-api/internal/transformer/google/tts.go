// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_google

import (
	"context"
	"fmt"
	"io"
	"sync"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
)

type googleTextToSpeech struct {
	*googleOption
	mu      sync.Mutex
	ctx     context.Context
	logger  commons.Logger
	client  *texttospeech.Client
	options *internal_transformer.TextToSpeechInitializeOptions
}

func NewGoogleTextToSpeech(
	ctx context.Context,
	logger commons.Logger,
	credential *internal_transformer.VaultCredential,
	opts *internal_transformer.TextToSpeechInitializeOptions,
) (internal_transformer.TextToSpeechTransformer, error) {
	googleOpts, err := NewGoogleOption(logger, credential, opts.ModelOptions)
	if err != nil {
		logger.Errorf("google-tts: initializing google failed %+v", err)
		return nil, err
	}

	return &googleTextToSpeech{
		ctx:          ctx,
		logger:       logger,
		googleOption: googleOpts,
		options:      opts,
	}, nil
}

// Name returns the name of this transformer.
func (*googleTextToSpeech) Name() string {
	return "google-text-to-speech"
}

func (gt *googleTextToSpeech) Initialize() error {
	gt.mu.Lock()
	defer gt.mu.Unlock()

	client, err := texttospeech.NewClient(gt.ctx, gt.GetClientOptions()...)
	if err != nil {
		return fmt.Errorf("google-tts: failed to create texttospeech client: %w", err)
	}
	gt.client = client
	return nil
}

// Transform synthesizes one text unit over a dedicated streaming call
// and drains it before returning, so a fallback provider can retry the
// same text when synthesis fails outright.
func (gt *googleTextToSpeech) Transform(ctx context.Context, in string, opts *internal_transformer.TextToSpeechOption) error {
	gt.mu.Lock()
	client := gt.client
	gt.mu.Unlock()

	if client == nil {
		return fmt.Errorf("google-tts: client is not initialized")
	}

	if in != "" {
		if err := gt.synthesize(ctx, client, in, opts.ContextId); err != nil {
			return err
		}
	}

	if opts.IsComplete && gt.options.OnComplete != nil {
		return gt.options.OnComplete(opts.ContextId)
	}
	return nil
}

func (gt *googleTextToSpeech) synthesize(ctx context.Context, client *texttospeech.Client, in string, contextId string) error {
	stream, err := client.StreamingSynthesize(ctx)
	if err != nil {
		return fmt.Errorf("google-tts: failed to open synthesis stream: %w", err)
	}

	if err := stream.Send(&texttospeechpb.StreamingSynthesizeRequest{
		StreamingRequest: &texttospeechpb.StreamingSynthesizeRequest_StreamingConfig{
			StreamingConfig: gt.TextToSpeechOptions(),
		},
	}); err != nil {
		return fmt.Errorf("google-tts: failed to send synthesis config: %w", err)
	}
	if err := stream.Send(&texttospeechpb.StreamingSynthesizeRequest{
		StreamingRequest: &texttospeechpb.StreamingSynthesizeRequest_Input{
			Input: &texttospeechpb.StreamingSynthesisInput{
				InputSource: &texttospeechpb.StreamingSynthesisInput_Text{Text: in},
			},
		},
	}); err != nil {
		return fmt.Errorf("google-tts: failed to send synthesis input: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("google-tts: failed to close synthesis stream: %w", err)
	}

	var total int
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if total == 0 {
				return fmt.Errorf("google-tts: failed to read audio stream: %w", err)
			}
			gt.logger.Warnf("google-tts: audio stream truncated after %d bytes: %v", total, err)
			break
		}
		audio := resp.GetAudioContent()
		if len(audio) == 0 {
			continue
		}
		total += len(audio)
		if cbErr := gt.options.OnSpeech(contextId, audio); cbErr != nil {
			gt.logger.Warnf("google-tts: speech callback rejected chunk: %v", cbErr)
			break
		}
	}
	if total == 0 {
		return fmt.Errorf("google-tts: no audio produced for text")
	}
	return nil
}

func (gt *googleTextToSpeech) Close(ctx context.Context) error {
	gt.mu.Lock()
	defer gt.mu.Unlock()

	if gt.client != nil {
		if err := gt.client.Close(); err != nil {
			return fmt.Errorf("error closing texttospeech client: %w", err)
		}
		gt.client = nil
		gt.logger.Info("google-tts: google texttospeech client closed")
	}
	return nil
}
