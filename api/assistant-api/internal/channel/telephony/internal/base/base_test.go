// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_telephony_base

import (
	"bytes"
	"testing"

	internal_audio "github.com/rapidaai/voice/api/assistant-api/internal/audio"
	channel_base "github.com/rapidaai/voice/api/assistant-api/internal/channel/base"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	"github.com/rapidaai/voice/pkg/commons"
	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	return logger
}

func newMulawBase(t *testing.T) *BaseTelephonyStreamer {
	t.Helper()
	agent := &internal_entity.Agent{Audited: gorm_model.Audited{Id: 7}, Name: "Support Agent"}
	call := &internal_entity.Call{Audited: gorm_model.Audited{Id: 99}, AgentId: 7}
	base := NewBaseTelephonyStreamer(newTestLogger(t), agent, call,
		WithSourceAudioConfig(internal_audio.NewMulaw8khzMonoAudioConfig()),
	)
	t.Cleanup(base.Cancel)
	return &base
}

// ============================================================================
// Construction
// ============================================================================

func TestBaseTelephonyStreamer_BuffersInInternalFormat(t *testing.T) {
	base := newMulawBase(t)

	// Thresholds come from the internal format regardless of the provider's
	// native one: 60ms and 20ms of 16kHz linear16.
	assert.Equal(t, 1920, base.InputBufferThreshold())
	assert.Equal(t, 640, base.OutputFrameSize())
	assert.Equal(t, 640, base.OutputBufferThreshold())
}

func TestBaseTelephonyStreamer_DefaultSourceIsInternalFormat(t *testing.T) {
	base := NewBaseTelephonyStreamer(newTestLogger(t), nil, nil)
	t.Cleanup(base.Cancel)

	assert.Equal(t, internal_audio.Linear16, base.SourceAudioConfig().GetAudioFormat())
	assert.Equal(t, int32(16000), base.SourceAudioConfig().GetSampleRate())

	// With matching formats the resample helpers are a passthrough.
	audio := bytes.Repeat([]byte{0x42}, 320)
	assert.Equal(t, audio, base.ResampleToInternal(audio))
	assert.Equal(t, audio, base.ResampleFromInternal(audio))
}

func TestBaseTelephonyStreamer_BaseOptionOverrides(t *testing.T) {
	base := NewBaseTelephonyStreamer(newTestLogger(t), nil, nil,
		WithSourceAudioConfig(internal_audio.NewMulaw8khzMonoAudioConfig()),
		WithBaseOption(channel_base.WithOutputFrameSize(160)),
	)
	t.Cleanup(base.Cancel)

	assert.Equal(t, 160, base.OutputFrameSize())
}

// ============================================================================
// Edge codecs
// ============================================================================

func TestBaseTelephonyStreamer_ResampleToInternalExpandsMulaw(t *testing.T) {
	base := newMulawBase(t)

	// One 20ms µ-law frame: 160 bytes at 8kHz becomes 640 bytes of
	// linear16 at 16kHz.
	ulaw := bytes.Repeat([]byte{0xff}, 160)
	pcm := base.ResampleToInternal(ulaw)
	assert.Len(t, pcm, 640)
}

func TestBaseTelephonyStreamer_ResampleFromInternalCompandsToMulaw(t *testing.T) {
	base := newMulawBase(t)

	pcm := bytes.Repeat([]byte{0x00}, 640)
	ulaw := base.ResampleFromInternal(pcm)
	assert.Len(t, ulaw, 160)
}

func TestBaseTelephonyStreamer_RoundTripPreservesDuration(t *testing.T) {
	base := newMulawBase(t)

	ulaw := bytes.Repeat([]byte{0xd5}, 480) // 60ms
	pcm := base.ResampleToInternal(ulaw)
	back := base.ResampleFromInternal(pcm)
	assert.Len(t, back, len(ulaw))
}

// ============================================================================
// Accessors
// ============================================================================

func TestBaseTelephonyStreamer_Accessors(t *testing.T) {
	base := newMulawBase(t)

	require.NotNil(t, base.Agent())
	assert.Equal(t, uint64(7), base.Agent().Id)
	require.NotNil(t, base.Call())
	assert.Equal(t, uint64(99), base.CallId())
	assert.NotNil(t, base.Encoder())
	assert.NotNil(t, base.Resampler())
}

func TestBaseTelephonyStreamer_CallIdWithoutCall(t *testing.T) {
	base := NewBaseTelephonyStreamer(newTestLogger(t), nil, nil)
	t.Cleanup(base.Cancel)

	assert.Zero(t, base.CallId())
}

func TestBaseTelephonyStreamer_CreateConnectionRequest(t *testing.T) {
	base := newMulawBase(t)

	init := base.CreateConnectionRequest()
	require.NotNil(t, init)
	assert.Equal(t, uint64(7), init.AgentId)
	assert.Equal(t, "Support Agent", init.AgentName)
}

func TestBaseTelephonyStreamer_CreateConnectionRequestWithoutAgent(t *testing.T) {
	base := NewBaseTelephonyStreamer(newTestLogger(t), nil, nil)
	t.Cleanup(base.Cancel)

	init := base.CreateConnectionRequest()
	require.NotNil(t, init)
	assert.Zero(t, init.AgentId)
	assert.Empty(t, init.AgentName)
}
