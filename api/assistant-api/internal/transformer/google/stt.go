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

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
)

type googleSpeechToText struct {
	*googleOption
	mu                 sync.Mutex
	logger             commons.Logger
	ctx                context.Context
	client             *speech.Client
	stream             speechpb.Speech_StreamingRecognizeClient
	transformerOptions *internal_transformer.SpeechToTextInitializeOptions
}

// Name implements internal_transformer.SpeechToTextTransformer.
func (*googleSpeechToText) Name() string {
	return "google-speech-to-text"
}

func NewGoogleSpeechToText(ctx context.Context,
	logger commons.Logger,
	credential *internal_transformer.VaultCredential,
	transformerOptions *internal_transformer.SpeechToTextInitializeOptions,
) (internal_transformer.SpeechToTextTransformer, error) {
	googleOpts, err := NewGoogleOption(logger, credential, transformerOptions.ModelOptions)
	if err != nil {
		logger.Errorf("google-stt: initializing google failed %+v", err)
		return nil, err
	}

	return &googleSpeechToText{
		ctx:                ctx,
		logger:             logger,
		googleOption:       googleOpts,
		transformerOptions: transformerOptions,
	}, nil
}

// speechToTextCallback processes streaming responses asynchronously.
func (gst *googleSpeechToText) speechToTextCallback(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			gst.logger.Infof("google-stt: context cancelled, stopping response listener")
			return
		default:
			resp, err := gst.stream.Recv()
			if err == io.EOF {
				gst.logger.Infof("google-stt: recognition stream closed")
				return
			}
			if err != nil {
				gst.logger.Infof("google-stt: response listener closed: %v", err)
				return
			}

			for _, result := range resp.GetResults() {
				if len(result.GetAlternatives()) == 0 {
					continue
				}
				alternative := result.GetAlternatives()[0]
				if alternative.GetTranscript() == "" {
					continue
				}
				language := result.GetLanguageCode()
				if language == "" {
					language = DefaultLanguageCode
				}
				if gst.transformerOptions.OnTranscript != nil {
					gst.transformerOptions.OnTranscript(
						alternative.GetTranscript(),
						float64(alternative.GetConfidence()),
						language,
						result.GetIsFinal(),
					)
				}
			}
		}
	}
}

func (gst *googleSpeechToText) Initialize() error {
	gst.mu.Lock()
	defer gst.mu.Unlock()

	client, err := speech.NewClient(gst.ctx, gst.GetSpeechToTextClientOptions()...)
	if err != nil {
		return fmt.Errorf("google-stt: failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(gst.ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("google-stt: failed to open recognition stream: %w", err)
	}

	// The first request carries the recognizer and streaming config;
	// audio follows on subsequent requests.
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: gst.GetRecognizer(),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: gst.SpeechToTextOptions(),
		},
	}); err != nil {
		client.Close()
		return fmt.Errorf("google-stt: failed to send recognition config: %w", err)
	}

	gst.client = client
	gst.stream = stream
	go gst.speechToTextCallback(gst.ctx)
	return nil
}

// Transform forwards one audio chunk. Audio arriving before the stream
// is up or after teardown is dropped, not failed.
func (gst *googleSpeechToText) Transform(ctx context.Context, in []byte, opts *internal_transformer.SpeechToTextOption) error {
	gst.mu.Lock()
	defer gst.mu.Unlock()

	if gst.stream == nil {
		gst.logger.Debugf("google-stt: dropping %d bytes, stream not open", len(in))
		return nil
	}
	if err := gst.stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: gst.GetRecognizer(),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: in,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (gst *googleSpeechToText) Close(ctx context.Context) error {
	gst.mu.Lock()
	defer gst.mu.Unlock()

	if gst.stream != nil {
		if err := gst.stream.CloseSend(); err != nil {
			gst.logger.Warnf("google-stt: failed to close recognition stream: %v", err)
		}
		gst.stream = nil
	}
	if gst.client != nil {
		if err := gst.client.Close(); err != nil {
			return fmt.Errorf("error closing speech client: %w", err)
		}
		gst.client = nil
		gst.logger.Info("google-stt: google speech client closed")
	}
	return nil
}
