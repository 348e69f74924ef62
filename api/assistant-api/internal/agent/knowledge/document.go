// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_agent_knowledge

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Chunking defaults, used when the deployment config leaves them unset.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// chunkEncoding is the tokenizer chunk sizes are measured in.
const chunkEncoding = "cl100k_base"

// ErrNoTextContent signals a parseable file with nothing to index.
var ErrNoTextContent = errors.New("No text content extracted from file")

// ExtractText pulls indexable text out of an uploaded file. Plain text
// and markdown pass through; CSV rows are flattened to pipe-joined
// lines. Binary formats are rejected.
func ExtractText(content []byte, filename string) (string, error) {
	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch extension {
	case "txt", "md", "text", "markdown":
		return validText(content), nil
	case "csv":
		return csvText(content)
	default:
		return "", fmt.Errorf("Unsupported file type: .%s", extension)
	}
}

// SupportedFileType reports whether ExtractText can handle the file, so
// uploads are rejected before any row is created.
func SupportedFileType(filename string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "txt", "md", "text", "markdown", "csv":
		return true
	}
	return false
}

func validText(content []byte) string {
	return strings.ToValidUTF8(string(content), "")
}

func csvText(content []byte) (string, error) {
	reader := csv.NewReader(strings.NewReader(validText(content)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var lines []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing csv failed: %w", err)
		}
		lines = append(lines, strings.Join(record, " | "))
	}
	return strings.Join(lines, "\n"), nil
}

// ChunkText splits text into token windows of chunkSize with
// chunkOverlap tokens shared between neighbours. Whitespace-only
// windows are dropped.
func ChunkText(text string, chunkSize, chunkOverlap int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoTextContent
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = 0
		}
	}

	encoding, err := tiktoken.GetEncoding(chunkEncoding)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding failed: %w", chunkEncoding, err)
	}
	tokens := encoding.Encode(text, nil, nil)

	step := chunkSize - chunkOverlap
	chunks := make([]string, 0, len(tokens)/step+1)
	for start := 0; start < len(tokens); start += step {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := strings.TrimSpace(encoding.Decode(tokens[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}
