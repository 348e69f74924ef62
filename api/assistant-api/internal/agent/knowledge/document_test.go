// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_agent_knowledge

import (
	"strings"
	"testing"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireEncoding skips when the tokenizer dictionary cannot be loaded
// (offline CI without a tiktoken cache).
func requireEncoding(t *testing.T) {
	t.Helper()
	if _, err := tiktoken.GetEncoding(chunkEncoding); err != nil {
		t.Skipf("tokenizer unavailable: %v", err)
	}
}

// =============================================================================
// ExtractText
// =============================================================================

func TestExtractText_PlainText(t *testing.T) {
	text, err := ExtractText([]byte("hello world"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestExtractText_Markdown(t *testing.T) {
	text, err := ExtractText([]byte("# Pricing\n\nBasic plan is $10."), "pricing.MD")
	require.NoError(t, err)
	assert.Contains(t, text, "Basic plan")
}

func TestExtractText_CsvRowsArePipeJoined(t *testing.T) {
	content := []byte("name,price\nbasic,10\npro,25\n")
	text, err := ExtractText(content, "plans.csv")
	require.NoError(t, err)
	assert.Equal(t, "name | price\nbasic | 10\npro | 25", text)
}

func TestExtractText_InvalidUtf8Dropped(t *testing.T) {
	content := append([]byte("caf"), 0xff, 0xfe)
	text, err := ExtractText(content, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "caf", text)
}

func TestExtractText_UnsupportedType(t *testing.T) {
	_, err := ExtractText([]byte("%PDF-1.4"), "contract.pdf")
	require.Error(t, err)
	assert.Equal(t, "Unsupported file type: .pdf", err.Error())
}

func TestExtractText_NoExtension(t *testing.T) {
	_, err := ExtractText([]byte("data"), "README")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported file type")
}

// =============================================================================
// ChunkText
// =============================================================================

func TestChunkText_EmptyText(t *testing.T) {
	_, err := ChunkText("   \n\t", 500, 50)
	assert.ErrorIs(t, err, ErrNoTextContent)
}

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	requireEncoding(t)

	chunks, err := ChunkText("Our basic plan costs ten dollars a month.", 500, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Our basic plan costs ten dollars a month.", chunks[0])
}

func TestChunkText_LongTextOverlaps(t *testing.T) {
	requireEncoding(t)

	text := strings.TrimSpace(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40))
	chunks, err := ChunkText(text, 50, 10)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1, "text should not fit one window")

	// Every window except the last is full-size; neighbours share the
	// overlap, so consecutive chunks repeat text.
	encoding, err := tiktoken.GetEncoding(chunkEncoding)
	require.NoError(t, err)
	for i, chunk := range chunks[:len(chunks)-1] {
		assert.LessOrEqual(t, len(encoding.Encode(chunk, nil, nil)), 50, "chunk %d too large", i)
	}
	assert.Contains(t, chunks[1], "quick brown fox")
}

func TestChunkText_DefaultsApplied(t *testing.T) {
	requireEncoding(t)

	chunks, err := ChunkText("short text", 0, -1)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}
