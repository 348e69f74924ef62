// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
)

type deepgramSpeechToText struct {
	*deepgramOption
	mu                 sync.Mutex
	logger             commons.Logger
	ctx                context.Context
	connection         *websocket.Conn
	transformerOptions *internal_transformer.SpeechToTextInitializeOptions
}

// Name implements internal_transformer.SpeechToTextTransformer.
func (*deepgramSpeechToText) Name() string {
	return "deepgram-speech-to-text"
}

func NewDeepgramSpeechToText(ctx context.Context,
	logger commons.Logger,
	credential *internal_transformer.VaultCredential,
	transformerOptions *internal_transformer.SpeechToTextInitializeOptions,
) (internal_transformer.SpeechToTextTransformer, error) {
	deepgramOpts, err := NewDeepgramOption(logger, credential, transformerOptions.ModelOptions)
	if err != nil {
		logger.Errorf("deepgram-stt: initializing deepgram failed %+v", err)
		return nil, err
	}

	return &deepgramSpeechToText{
		ctx:                ctx,
		logger:             logger,
		deepgramOption:     deepgramOpts,
		transformerOptions: transformerOptions,
	}, nil
}

// speechToTextResponse is the subset of deepgram live messages the
// engine acts on. Results carry transcripts; SpeechStarted is the
// voice-activity event used for barge-in.
type speechToTextResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
		Languages []string `json:"languages"`
	} `json:"channel"`
}

// speechToTextCallback processes streaming responses asynchronously.
func (dst *deepgramSpeechToText) speechToTextCallback(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			dst.logger.Infof("deepgram-stt: context cancelled, stopping response listener")
			return
		default:
			_, msg, err := dst.connection.ReadMessage()
			if err != nil {
				dst.logger.Infof("deepgram-stt: response listener closed: %v", err)
				return
			}
			var resp speechToTextResponse
			if err := json.Unmarshal(msg, &resp); err != nil {
				dst.logger.Errorf("deepgram-stt: invalid json from deepgram error: %v", err)
				continue
			}

			switch resp.Type {
			case "SpeechStarted":
				if dst.transformerOptions.OnSpeechStarted != nil {
					dst.transformerOptions.OnSpeechStarted()
				}
			case "Results":
				if len(resp.Channel.Alternatives) == 0 {
					continue
				}
				alternative := resp.Channel.Alternatives[0]
				if alternative.Transcript == "" {
					continue
				}
				language := DefaultLanguage
				if len(resp.Channel.Languages) > 0 {
					language = resp.Channel.Languages[0]
				}
				if dst.transformerOptions.OnTranscript != nil {
					dst.transformerOptions.OnTranscript(
						alternative.Transcript,
						alternative.Confidence,
						language,
						resp.IsFinal,
					)
				}
			}
		}
	}
}

func (dst *deepgramSpeechToText) Initialize() error {
	dst.mu.Lock()
	defer dst.mu.Unlock()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+dst.GetKey())

	conn, _, err := websocket.DefaultDialer.Dial(dst.GetSpeechToTextConnectionString(), headers)
	if err != nil {
		return fmt.Errorf("deepgram-stt: failed to connect to Deepgram WebSocket: %w", err)
	}
	dst.connection = conn
	go dst.speechToTextCallback(dst.ctx)
	return nil
}

// Transform forwards one audio chunk. Audio arriving before the
// connection is up or after teardown is dropped, not failed; media
// keeps flowing while the session settles.
func (dst *deepgramSpeechToText) Transform(ctx context.Context, in []byte, opts *internal_transformer.SpeechToTextOption) error {
	dst.mu.Lock()
	defer dst.mu.Unlock()

	if dst.connection == nil {
		dst.logger.Debugf("deepgram-stt: dropping %d bytes, connection not open", len(in))
		return nil
	}
	if err := dst.connection.WriteMessage(websocket.BinaryMessage, in); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Close asks deepgram to flush pending results and closes the socket.
func (dst *deepgramSpeechToText) Close(ctx context.Context) error {
	dst.mu.Lock()
	defer dst.mu.Unlock()

	if dst.connection == nil {
		return nil
	}
	if err := dst.connection.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		dst.logger.Warnf("deepgram-stt: failed to send CloseStream: %v", err)
	}
	err := dst.connection.Close()
	dst.connection = nil
	if err != nil {
		return fmt.Errorf("error closing WebSocket connection: %w", err)
	}
	dst.logger.Info("deepgram-stt: deepgram websocket connection closed")
	return nil
}
