// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package channel_base carries the buffering machinery every transport
// streamer builds on: caller audio is batched to a recognizer-friendly
// window before it enters the talk loop, assistant audio is cut into
// fixed playback frames before it leaves toward the client.
package channel_base

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

const (
	DefaultInputChannelSize  = 1024
	DefaultOutputChannelSize = 1024

	// inputWindowMs is how much caller audio accumulates before a batch
	// is handed to the recognizer; outputWindowMs is the playback frame
	// the transport paces at.
	inputWindowMs  = 60
	outputWindowMs = 20

	// fallbackBufferSize pre-allocates the staging buffers when no
	// threshold is known at construction time.
	fallbackBufferSize = 4096
)

// BytesPerMs returns how many bytes one millisecond of audio occupies in
// the given format, or 0 for a nil config.
func BytesPerMs(config *internal_audio.AudioConfig) int {
	if config == nil {
		return 0
	}
	return int(config.GetSampleRate()) * config.BytesPerSample() * int(config.GetChannels()) / 1000
}

// =============================================================================
// Options
// =============================================================================

type streamerOptions struct {
	inputChannelSize      int
	outputChannelSize     int
	inputBufferThreshold  int
	outputBufferThreshold int
	outputFrameSize       int
	inputAudioConfig      *internal_audio.AudioConfig
	outputAudioConfig     *internal_audio.AudioConfig
}

type Option func(*streamerOptions)

func WithInputChannelSize(size int) Option {
	return func(o *streamerOptions) { o.inputChannelSize = size }
}

func WithOutputChannelSize(size int) Option {
	return func(o *streamerOptions) { o.outputChannelSize = size }
}

// WithInputBufferThreshold sets the input batch size in bytes, overriding
// anything derived from the input audio config.
func WithInputBufferThreshold(threshold int) Option {
	return func(o *streamerOptions) { o.inputBufferThreshold = threshold }
}

// WithOutputBufferThreshold sets how many bytes must be buffered before
// output frames are cut, overriding the derived value.
func WithOutputBufferThreshold(threshold int) Option {
	return func(o *streamerOptions) { o.outputBufferThreshold = threshold }
}

// WithOutputFrameSize sets the outbound frame size in bytes, overriding
// anything derived from the output audio config.
func WithOutputFrameSize(size int) Option {
	return func(o *streamerOptions) { o.outputFrameSize = size }
}

// WithInputAudioConfig derives the input batch threshold from the format
// the client sends: BytesPerMs × 60ms.
func WithInputAudioConfig(config *internal_audio.AudioConfig) Option {
	return func(o *streamerOptions) { o.inputAudioConfig = config }
}

// WithOutputAudioConfig derives the outbound frame size from the format
// the client plays: BytesPerMs × 20ms. The output threshold follows the
// frame size unless set explicitly.
func WithOutputAudioConfig(config *internal_audio.AudioConfig) Option {
	return func(o *streamerOptions) { o.outputAudioConfig = config }
}

// =============================================================================
// BaseStreamer
// =============================================================================

// BaseStreamer is embedded by every concrete transport streamer. It owns
// the in/out channels the talk loop reads and writes, the staging buffers
// in front of them, and the shared disconnection bookkeeping. All mutable
// state sits behind pointers so embedding the value keeps one shared
// instance.
type BaseStreamer struct {
	Logger commons.Logger
	Ctx    context.Context
	Cancel context.CancelFunc
	Closed bool

	// InputCh carries caller messages toward the talk loop, OutputCh
	// assistant messages toward the transport writer. FlushAudioCh fires
	// once per ClearOutputBuffer so transports can discard whatever the
	// provider has already queued remotely.
	InputCh      chan internal_type.Stream
	OutputCh     chan internal_type.Stream
	FlushAudioCh chan struct{}

	inputThreshold  int
	outputThreshold int
	frameSize       int
	inputCapacity   int

	closeMu      *sync.Mutex
	inputMu      *sync.Mutex
	outputMu     *sync.Mutex
	inputBuffer  *bytes.Buffer
	outputBuffer *bytes.Buffer
}

func NewBaseStreamer(logger commons.Logger, opts ...Option) BaseStreamer {
	options := &streamerOptions{
		inputChannelSize:      DefaultInputChannelSize,
		outputChannelSize:     DefaultOutputChannelSize,
		inputBufferThreshold:  -1,
		outputBufferThreshold: -1,
		outputFrameSize:       -1,
	}
	for _, opt := range opts {
		opt(options)
	}

	// Explicit values win over anything derived from the audio configs.
	inputThreshold := options.inputBufferThreshold
	if inputThreshold < 0 {
		inputThreshold = BytesPerMs(options.inputAudioConfig) * inputWindowMs
	}
	frameSize := options.outputFrameSize
	if frameSize < 0 {
		frameSize = BytesPerMs(options.outputAudioConfig) * outputWindowMs
	}
	outputThreshold := options.outputBufferThreshold
	if outputThreshold < 0 {
		outputThreshold = frameSize
	}

	inputCapacity := fallbackBufferSize
	if inputThreshold > 0 {
		inputCapacity = inputThreshold * 2
	}
	outputCapacity := fallbackBufferSize
	if outputThreshold+frameSize > 0 {
		outputCapacity = outputThreshold + frameSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return BaseStreamer{
		Logger:          logger,
		Ctx:             ctx,
		Cancel:          cancel,
		InputCh:         make(chan internal_type.Stream, options.inputChannelSize),
		OutputCh:        make(chan internal_type.Stream, options.outputChannelSize),
		FlushAudioCh:    make(chan struct{}, 1),
		inputThreshold:  inputThreshold,
		outputThreshold: outputThreshold,
		frameSize:       frameSize,
		inputCapacity:   inputCapacity,
		closeMu:         &sync.Mutex{},
		inputMu:         &sync.Mutex{},
		outputMu:        &sync.Mutex{},
		inputBuffer:     bytes.NewBuffer(make([]byte, 0, inputCapacity)),
		outputBuffer:    bytes.NewBuffer(make([]byte, 0, outputCapacity)),
	}
}

func (bs *BaseStreamer) Context() context.Context   { return bs.Ctx }
func (bs *BaseStreamer) InputBufferThreshold() int  { return bs.inputThreshold }
func (bs *BaseStreamer) OutputBufferThreshold() int { return bs.outputThreshold }
func (bs *BaseStreamer) OutputFrameSize() int       { return bs.frameSize }

// Recv blocks for the next inbound message. It returns io.EOF once the
// streamer context is cancelled or the input channel is closed.
func (bs *BaseStreamer) Recv() (internal_type.Stream, error) {
	select {
	case <-bs.Ctx.Done():
		return nil, io.EOF
	case message, ok := <-bs.InputCh:
		if !ok {
			return nil, io.EOF
		}
		return message, nil
	}
}

// PushInput queues an inbound message without blocking. A full channel
// means the talk loop has fallen behind real time; dropping is preferable
// to stalling the transport reader.
func (bs *BaseStreamer) PushInput(message internal_type.Stream) {
	select {
	case bs.InputCh <- message:
	default:
		bs.Logger.Warnf("input channel full, dropping %T", message)
	}
}

// PushOutput queues an outbound message without blocking.
func (bs *BaseStreamer) PushOutput(message internal_type.Stream) {
	select {
	case bs.OutputCh <- message:
	default:
		bs.Logger.Warnf("output channel full, dropping %T", message)
	}
}

// PushDisconnection queues exactly one disconnection toward the talk
// loop, no matter how many times or from how many goroutines the
// transport reports the hangup.
func (bs *BaseStreamer) PushDisconnection(disconnectionType internal_type.DisconnectionType) {
	bs.closeMu.Lock()
	if bs.Closed {
		bs.closeMu.Unlock()
		return
	}
	bs.Closed = true
	bs.closeMu.Unlock()

	bs.PushInput(&internal_type.ConversationDisconnection{
		Type: disconnectionType,
		Time: time.Now(),
	})
}

// =============================================================================
// Input batching
// =============================================================================

// BufferAndSendInput accumulates caller audio and flushes the whole batch
// as one user message once the input threshold is reached. The full
// buffer is swapped out under the lock so the flushed bytes are handed
// over without a copy.
func (bs *BaseStreamer) BufferAndSendInput(audio []byte) {
	bs.inputMu.Lock()
	bs.inputBuffer.Write(audio)
	if bs.inputBuffer.Len() < bs.inputThreshold || bs.inputBuffer.Len() == 0 {
		bs.inputMu.Unlock()
		return
	}
	flushed := bs.inputBuffer
	bs.inputBuffer = bytes.NewBuffer(make([]byte, 0, bs.inputCapacity))
	bs.inputMu.Unlock()

	bs.PushInput(&internal_type.ConversationUserMessage{
		Audio: flushed.Bytes(),
		Time:  time.Now(),
	})
}

// ClearInputBuffer throws away all caller audio that has not reached the
// talk loop yet: the staging buffer and anything already queued.
func (bs *BaseStreamer) ClearInputBuffer() {
	bs.inputMu.Lock()
	bs.inputBuffer.Reset()
	bs.inputMu.Unlock()

	for {
		select {
		case <-bs.InputCh:
		default:
			return
		}
	}
}

// WithInputBuffer runs fn with the input staging buffer under its lock.
func (bs *BaseStreamer) WithInputBuffer(fn func(buffer *bytes.Buffer)) {
	bs.inputMu.Lock()
	defer bs.inputMu.Unlock()
	fn(bs.inputBuffer)
}

// ResetInputBuffer empties the input staging buffer.
func (bs *BaseStreamer) ResetInputBuffer() {
	bs.inputMu.Lock()
	defer bs.inputMu.Unlock()
	bs.inputBuffer.Reset()
}

// =============================================================================
// Output framing
// =============================================================================

// BufferAndSendOutput accumulates assistant audio and, once the output
// threshold is reached, cuts every complete frame out of the buffer under
// a single lock and queues each as one assistant message. A trailing
// partial frame stays buffered for the next call.
func (bs *BaseStreamer) BufferAndSendOutput(audio []byte) {
	var frames [][]byte

	bs.outputMu.Lock()
	bs.outputBuffer.Write(audio)
	if bs.outputBuffer.Len() >= bs.outputThreshold && bs.outputBuffer.Len() > 0 {
		if bs.frameSize <= 0 {
			frame := make([]byte, bs.outputBuffer.Len())
			bs.outputBuffer.Read(frame)
			frames = append(frames, frame)
		} else {
			for bs.outputBuffer.Len() >= bs.frameSize {
				frame := getFrame(bs.frameSize)
				bs.outputBuffer.Read(frame)
				frames = append(frames, frame)
			}
		}
	}
	bs.outputMu.Unlock()

	for _, frame := range frames {
		bs.PushOutput(&internal_type.ConversationAssistantMessage{
			Audio: frame,
			Time:  time.Now(),
		})
	}
}

// ClearOutputBuffer discards all assistant audio that has not been
// written to the transport yet and signals FlushAudioCh so the transport
// can clear whatever the far side has buffered. Used on barge-in.
func (bs *BaseStreamer) ClearOutputBuffer() {
	bs.outputMu.Lock()
	bs.outputBuffer.Reset()
	bs.outputMu.Unlock()

	draining := true
	for draining {
		select {
		case message := <-bs.OutputCh:
			if assistant, ok := message.(*internal_type.ConversationAssistantMessage); ok {
				putFrame(assistant.Audio)
			}
		default:
			draining = false
		}
	}

	select {
	case bs.FlushAudioCh <- struct{}{}:
	default:
	}
}

// WithOutputBuffer runs fn with the output staging buffer under its lock.
func (bs *BaseStreamer) WithOutputBuffer(fn func(buffer *bytes.Buffer)) {
	bs.outputMu.Lock()
	defer bs.outputMu.Unlock()
	fn(bs.outputBuffer)
}

// ResetOutputBuffer empties the output staging buffer.
func (bs *BaseStreamer) ResetOutputBuffer() {
	bs.outputMu.Lock()
	defer bs.outputMu.Unlock()
	bs.outputBuffer.Reset()
}

// =============================================================================
// Frame pool
// =============================================================================

// framePool recycles outbound frame slices. At 50 telephony frames per
// second per call the per-frame allocation is worth avoiding.
var framePool = sync.Pool{
	New: func() interface{} { return []byte(nil) },
}

// getFrame returns a slice of exactly size bytes, reusing pooled backing
// arrays when one is large enough.
func getFrame(size int) []byte {
	frame, _ := framePool.Get().([]byte)
	if cap(frame) < size {
		return make([]byte, size)
	}
	return frame[:size]
}

// putFrame returns a frame to the pool once the transport has written it.
func putFrame(frame []byte) {
	framePool.Put(frame[:0])
}

// RecycleFrame hands a written frame back to the pool. Transports call
// this after the frame has left for the socket.
func (bs *BaseStreamer) RecycleFrame(frame []byte) {
	putFrame(frame)
}
