// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_agent_embedding turns text into vectors for the
// knowledge pipeline. Document embedding runs in batches during
// ingestion; query embedding runs once per user utterance and sits on
// the session's latency budget, so it is cached in redis.
package internal_agent_embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/redis/go-redis/v9"

	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
	"github.com/rapidaai/voice/pkg/utils"
)

// Credential keys read from the embedding vault entry.
const (
	CredentialOpenAIKey = "openai_api_key"
	CredentialCohereKey = "cohere_api_key"
)

// Default models per provider.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultCohereModel = "embed-english-v3.0"
)

// embedBatchSize caps one provider request during ingestion.
const embedBatchSize = 100

// queryCacheTtl bounds staleness of cached query vectors. Embeddings
// are deterministic per model, so the TTL only reclaims space.
const queryCacheTtl = 24 * time.Hour

// Embedder turns text into vectors. Implementations return one vector
// per input, in input order, all with the model's fixed dimension.
type Embedder interface {
	Name() string
	Model() string

	// EmbedDocuments embeds ingestion chunks.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds one retrieval query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds the configured provider, wrapped with the redis
// query cache when a connector is given. model falls back to the
// provider default when empty.
func NewEmbedder(
	ctx context.Context,
	logger commons.Logger,
	provider string,
	model string,
	credential *internal_transformer.VaultCredential,
	cache connectors.RedisConnector,
) (Embedder, error) {
	credentials := utils.Option(credential.AsMap())

	var embedder Embedder
	var err error
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "cohere":
		embedder, err = NewCohereEmbedder(logger, model, credentials.GetStringOr(CredentialCohereKey, ""))
	default:
		embedder, err = NewOpenAIEmbedder(logger, model, credentials.GetStringOr(CredentialOpenAIKey, ""))
	}
	if err != nil {
		return nil, err
	}
	if cache != nil {
		embedder = NewCachedEmbedder(logger, cache, embedder)
	}
	return embedder, nil
}

// =============================================================================
// OpenAI
// =============================================================================

type openaiEmbedder struct {
	logger commons.Logger
	model  string
	client openai.Client
}

func NewOpenAIEmbedder(logger commons.Logger, model, apiKey string) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: missing openai api key")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &openaiEmbedder{
		logger: logger,
		model:  model,
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

func (*openaiEmbedder) Name() string    { return "openai" }
func (e *openaiEmbedder) Model() string { return e.model }

func (e *openaiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *openaiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *openaiEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: openai request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding: openai returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = toFloat32(item.Embedding)
	}
	return vectors, nil
}

// =============================================================================
// Cohere
// =============================================================================

type cohereEmbedder struct {
	logger commons.Logger
	model  string
	client *cohereclient.Client
}

func NewCohereEmbedder(logger commons.Logger, model, apiKey string) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: missing cohere api key")
	}
	if model == "" {
		model = DefaultCohereModel
	}
	return &cohereEmbedder{
		logger: logger,
		model:  model,
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
	}, nil
}

func (*cohereEmbedder) Name() string    { return "cohere" }
func (e *cohereEmbedder) Model() string { return e.model }

func (e *cohereEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embed(ctx, texts[start:end], cohere.EmbedInputTypeSearchDocument)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *cohereEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, cohere.EmbedInputTypeSearchQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *cohereEmbedder) embed(ctx context.Context, texts []string, inputType cohere.EmbedInputType) ([][]float32, error) {
	resp, err := e.client.Embed(ctx, &cohere.EmbedRequest{
		Texts:     texts,
		Model:     cohere.String(e.model),
		InputType: inputType.Ptr(),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: cohere request failed: %w", err)
	}

	var raw [][]float64
	switch {
	case resp.EmbeddingsFloats != nil:
		raw = resp.EmbeddingsFloats.Embeddings
	case resp.EmbeddingsByType != nil && resp.EmbeddingsByType.Embeddings != nil:
		raw = resp.EmbeddingsByType.Embeddings.Float
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("embedding: cohere returned %d vectors for %d inputs", len(raw), len(texts))
	}
	vectors := make([][]float32, len(raw))
	for i, values := range raw {
		vectors[i] = toFloat32(values)
	}
	return vectors, nil
}

// =============================================================================
// Redis query cache
// =============================================================================

type cachedEmbedder struct {
	logger commons.Logger
	redis  connectors.RedisConnector
	inner  Embedder
}

// NewCachedEmbedder wraps an embedder with a redis read-through cache
// on query embedding. Document embedding passes straight through;
// ingestion text rarely repeats.
func NewCachedEmbedder(logger commons.Logger, redis connectors.RedisConnector, inner Embedder) Embedder {
	return &cachedEmbedder{logger: logger, redis: redis, inner: inner}
}

func (e *cachedEmbedder) Name() string  { return e.inner.Name() }
func (e *cachedEmbedder) Model() string { return e.inner.Model() }

func (e *cachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.inner.EmbedDocuments(ctx, texts)
}

func (e *cachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := e.cacheKey(text)

	cached, err := e.redis.Client().Get(ctx, key).Bytes()
	if err == nil {
		var vector []float32
		if err := json.Unmarshal(cached, &vector); err == nil {
			return vector, nil
		}
		e.logger.Warnf("embedding: dropping undecodable cache entry %s", key)
	} else if err != redis.Nil {
		e.logger.Warnf("embedding: cache read failed, embedding directly: %v", err)
	}

	vector, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(vector); err == nil {
		if err := e.redis.Client().Set(ctx, key, payload, queryCacheTtl).Err(); err != nil {
			e.logger.Warnf("embedding: cache write failed: %v", err)
		}
	}
	return vector, nil
}

func (e *cachedEmbedder) cacheKey(text string) string {
	digest := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", e.inner.Model(), hex.EncodeToString(digest[:]))
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
