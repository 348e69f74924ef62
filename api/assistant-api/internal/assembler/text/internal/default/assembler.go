// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_default_assembler regroups streamed model deltas
// into sentences so synthesis can start while the model is still
// generating.
package internal_default_assembler

import (
	"context"
	"strings"
	"unicode"

	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/utils"
)

// sentenceTerminators end a speakable unit. A terminator only cuts when
// the rune after it is whitespace or the buffer ends, so decimals
// ("3.14"), clock times ("12:30") and mid-word dots stay intact.
const sentenceTerminators = ".!?:"

type defaultAssembler struct {
	logger commons.Logger
	buffer string
}

func NewDefaultLLMTextAssembler(
	context context.Context,
	logger commons.Logger,
	options utils.Option,
) (internal_type.LLMTextAssembler, error) {
	return &defaultAssembler{logger: logger}, nil
}

// Assemble appends the delta to the running buffer and returns every
// sentence that is now complete. The last segment always stays buffered
// because the model may still extend it; Flush hands it out once the
// stream ends.
func (a *defaultAssembler) Assemble(ctx context.Context, delta string) []string {
	if delta == "" {
		return nil
	}
	a.buffer += delta
	segments := splitSentences(a.buffer)
	if len(segments) < 2 {
		return nil
	}
	a.buffer = segments[len(segments)-1]
	return segments[:len(segments)-1]
}

// Flush returns the trailing text of the turn and resets the assembler.
// Whitespace-only leftovers are dropped so the speaker never receives
// an empty unit.
func (a *defaultAssembler) Flush(ctx context.Context) string {
	remaining := a.buffer
	a.buffer = ""
	if strings.TrimSpace(remaining) == "" {
		return ""
	}
	return remaining
}

// splitSentences cuts text after every terminator that is followed by
// whitespace or the end of the buffer. The single whitespace rune at the
// cut is consumed and whitespace-only fragments are dropped, so the last
// element is the unfinished remainder, or the final sentence when the
// buffer ends exactly on a terminator.
func splitSentences(text string) []string {
	var segments []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(sentenceTerminators, runes[i]) {
			continue
		}
		if i+1 == len(runes) {
			segments = keepSegment(segments, string(runes[start:]))
			start = len(runes)
			break
		}
		if unicode.IsSpace(runes[i+1]) {
			segments = keepSegment(segments, string(runes[start:i+1]))
			start = i + 2
			i++
		}
	}
	if start < len(runes) {
		segments = keepSegment(segments, string(runes[start:]))
	}
	return segments
}

// keepSegment appends segment unless it is whitespace only.
func keepSegment(segments []string, segment string) []string {
	if strings.TrimSpace(segment) == "" {
		return segments
	}
	return append(segments, segment)
}
