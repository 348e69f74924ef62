// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transformer_streamelements

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
)

// audioChunkSize is the read granularity for decoded synthesis; at
// 16kHz PCM16 one chunk is 128ms of speech.
const audioChunkSize = 4096

type streamelementsTextToSpeech struct {
	*streamelementsOption
	mu      sync.Mutex
	ctx     context.Context
	logger  commons.Logger
	client  *resty.Client
	options *internal_transformer.TextToSpeechInitializeOptions
}

// NewStreamElementsTextToSpeech is the zero-credential synthesizer at
// the end of the fallback chain. The endpoint serves MP3 which gets
// transcoded to linear16 mono through ffmpeg on the fly.
func NewStreamElementsTextToSpeech(
	ctx context.Context,
	logger commons.Logger,
	credential *internal_transformer.VaultCredential,
	opts *internal_transformer.TextToSpeechInitializeOptions,
) (internal_transformer.TextToSpeechTransformer, error) {
	streamelementsOpts, err := NewStreamElementsOption(logger, credential, opts.ModelOptions)
	if err != nil {
		logger.Errorf("streamelements-tts: initializing streamelements failed %+v", err)
		return nil, err
	}

	return &streamelementsTextToSpeech{
		ctx:                  ctx,
		logger:               logger,
		streamelementsOption: streamelementsOpts,
		options:              opts,
	}, nil
}

// Name returns the name of this transformer.
func (*streamelementsTextToSpeech) Name() string {
	return "streamelements-text-to-speech"
}

func (st *streamelementsTextToSpeech) Initialize() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.client = resty.New().SetTimeout(30 * time.Second)
	return nil
}

// Transform fetches the spoken MP3 for one text unit and streams the
// decoded audio back via OnSpeech. An error return means no audio was
// delivered for this text; with no provider behind this one that ends
// synthesis for the text.
func (st *streamelementsTextToSpeech) Transform(ctx context.Context, in string, opts *internal_transformer.TextToSpeechOption) error {
	st.mu.Lock()
	client := st.client
	st.mu.Unlock()

	if client == nil {
		return fmt.Errorf("streamelements-tts: client is not initialized")
	}

	if in != "" {
		resp, err := client.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(st.GetTextToSpeechConnectionString(in))
		if err != nil {
			return fmt.Errorf("streamelements-tts: synthesis request failed: %w", err)
		}
		body := resp.RawBody()
		defer body.Close()

		if resp.StatusCode() >= 400 {
			snippet, _ := io.ReadAll(io.LimitReader(body, 200))
			return fmt.Errorf("streamelements-tts: synthesis failed with status %d: %s", resp.StatusCode(), string(snippet))
		}

		if err := st.decode(ctx, body, opts.ContextId); err != nil {
			return err
		}
	}

	if opts.IsComplete && st.options.OnComplete != nil {
		return st.options.OnComplete(opts.ContextId)
	}
	return nil
}

// decode pipes the MP3 stream through ffmpeg and forwards the linear16
// output chunk by chunk.
func (st *streamelementsTextToSpeech) decode(ctx context.Context, mp3 io.Reader, contextId string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", "16000",
		"-ac", "1",
		"pipe:1")
	cmd.Stdin = mp3

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("streamelements-tts: failed to open decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("streamelements-tts: failed to start decoder: %w", err)
	}

	var total int
	buf := make([]byte, audioChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			total += n
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if cbErr := st.options.OnSpeech(contextId, chunk); cbErr != nil {
				st.logger.Warnf("streamelements-tts: speech callback rejected chunk: %v", cbErr)
				break
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if total == 0 {
				_ = cmd.Wait()
				return fmt.Errorf("streamelements-tts: failed to read decoded audio: %w", err)
			}
			st.logger.Warnf("streamelements-tts: decoded audio truncated after %d bytes: %v", total, err)
			break
		}
	}
	if err := cmd.Wait(); err != nil && total == 0 {
		return fmt.Errorf("streamelements-tts: decoder failed: %v: %s", err, stderr.String())
	}
	if total == 0 {
		return fmt.Errorf("streamelements-tts: no audio produced for text")
	}
	return nil
}

func (st *streamelementsTextToSpeech) Close(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.client = nil
	return nil
}
