// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_agent_knowledge is both ends of the knowledge-base
// pipeline: retrieval grounds a live conversation turn, ingestion
// chunks and embeds uploaded documents into the vector index. The two
// share one lazily built store per knowledge base.
package internal_agent_knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	internal_agent_embedding "github.com/rapidaai/voice/api/assistant-api/internal/agent/embedding"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_service "github.com/rapidaai/voice/api/assistant-api/internal/service"
	internal_vectorstore "github.com/rapidaai/voice/api/assistant-api/internal/vectorstore"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/configs"
	"github.com/rapidaai/voice/pkg/connectors"
	"github.com/rapidaai/voice/pkg/utils"
)

// DefaultRetrievalTopK applies when the deployment config leaves the
// retrieval depth unset.
const DefaultRetrievalTopK = 5

// chunkSeparator joins retrieved chunks into one context block.
const chunkSeparator = "\n\n---\n\n"

// Knowledge is the full knowledge-base surface. The executor only sees
// the retrieval side of it.
type Knowledge interface {
	// RetrieveContext embeds the utterance and returns matched chunk
	// text joined for prompt injection. Empty when the agent has no
	// usable knowledge base or nothing matched.
	RetrieveContext(ctx context.Context, agent *internal_entity.Agent, query string) (string, error)

	// ProcessFile runs the ingestion pipeline for one uploaded file and
	// stamps its status as it goes.
	ProcessFile(ctx context.Context, file *internal_entity.KnowledgeBaseFile, content []byte) error

	// DeleteFile removes the file's vectors and then its row. Deleting
	// an already deleted file is a no-op.
	DeleteFile(ctx context.Context, file *internal_entity.KnowledgeBaseFile) error

	// DeleteBase wipes the base's namespace (best effort) and removes
	// the base with its file rows.
	DeleteBase(ctx context.Context, base *internal_entity.KnowledgeBase) error
}

type knowledge struct {
	logger      commons.Logger
	config      *configs.KnowledgeConfig
	vectorStore *configs.VectorStoreConfig
	service     internal_service.KnowledgeService
	embedder    internal_agent_embedding.Embedder
	opensearch  connectors.OpenSearchConnector

	mu     sync.Mutex
	stores map[uint64]internal_vectorstore.VectorStore
}

// NewKnowledge wires retrieval and ingestion over the shared embedder
// and the deployment's vector-store defaults. opensearch may be nil
// when no opensearch-backed knowledge base exists.
func NewKnowledge(
	logger commons.Logger,
	config *configs.KnowledgeConfig,
	vectorStore *configs.VectorStoreConfig,
	service internal_service.KnowledgeService,
	embedder internal_agent_embedding.Embedder,
	opensearch connectors.OpenSearchConnector,
) Knowledge {
	return &knowledge{
		logger:      logger,
		config:      config,
		vectorStore: vectorStore,
		service:     service,
		embedder:    embedder,
		opensearch:  opensearch,
		stores:      map[uint64]internal_vectorstore.VectorStore{},
	}
}

// =============================================================================
// Retrieval
// =============================================================================

func (k *knowledge) RetrieveContext(ctx context.Context, agent *internal_entity.Agent, query string) (string, error) {
	if agent == nil || agent.KnowledgeBaseId == 0 {
		return "", nil
	}
	base, err := k.service.GetActiveBase(ctx, agent.KnowledgeBaseId)
	if err != nil {
		k.logger.Debugf("knowledge: base %d unavailable, skipping retrieval: %v", agent.KnowledgeBaseId, err)
		return "", nil
	}
	k.warnModelMismatch(base)

	store, err := k.storeFor(base)
	if err != nil {
		return "", err
	}
	embedding, err := k.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("knowledge: embedding query failed: %w", err)
	}

	topK := k.config.RetrievalTopK
	if topK <= 0 {
		topK = DefaultRetrievalTopK
	}
	matches, err := store.Query(ctx, embedding, topK, k.namespaceFor(base))
	if err != nil {
		return "", fmt.Errorf("knowledge: vector query failed: %w", err)
	}

	chunks := make([]string, 0, len(matches))
	for _, match := range matches {
		if match.Text != "" {
			chunks = append(chunks, match.Text)
		}
	}
	if len(chunks) == 0 {
		return "", nil
	}
	k.logger.Debugf("knowledge: grounding turn with %d chunks from base %d", len(chunks), base.Id)
	return strings.Join(chunks, chunkSeparator), nil
}

// =============================================================================
// Ingestion
// =============================================================================

func (k *knowledge) ProcessFile(ctx context.Context, file *internal_entity.KnowledgeBaseFile, content []byte) error {
	if err := k.service.MarkFileProcessing(ctx, file.Id); err != nil {
		return err
	}

	chunkCount, err := k.ingest(ctx, file, content)
	if err != nil {
		k.logger.Errorf("knowledge: ingesting %s failed: %v", file.Filename, err)
		if markErr := k.service.MarkFileFailed(ctx, file.Id, err.Error()); markErr != nil {
			k.logger.Warnf("knowledge: stamping %d failed: %v", file.Id, markErr)
		}
		return err
	}

	return k.service.MarkFileCompleted(ctx, file.Id, chunkCount)
}

func (k *knowledge) ingest(ctx context.Context, file *internal_entity.KnowledgeBaseFile, content []byte) (uint32, error) {
	text, err := ExtractText(content, file.Filename)
	if err != nil {
		return 0, err
	}

	chunks, err := ChunkText(text, k.config.ChunkSize, k.config.ChunkOverlap)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, ErrNoTextContent
	}

	embeddings, err := k.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks failed: %w", len(chunks), err)
	}

	base, err := k.service.GetBase(ctx, file.KnowledgeBaseId)
	if err != nil {
		return 0, err
	}
	k.warnModelMismatch(base)
	store, err := k.storeFor(base)
	if err != nil {
		return 0, err
	}

	vectors := make([]*internal_vectorstore.Vector, len(chunks))
	for i, chunk := range chunks {
		vectors[i] = &internal_vectorstore.Vector{
			Id:     file.VectorId(i),
			Values: embeddings[i],
			Metadata: map[string]interface{}{
				"text":        chunk,
				"file_id":     file.Id,
				"filename":    file.Filename,
				"chunk_index": i,
			},
		}
	}
	if err := store.Upsert(ctx, vectors, k.namespaceFor(base)); err != nil {
		return 0, err
	}

	k.logger.Infow("knowledge file ingested",
		"file", file.Filename, "base", base.Id, "chunks", len(chunks))
	return uint32(len(chunks)), nil
}

func (k *knowledge) DeleteFile(ctx context.Context, file *internal_entity.KnowledgeBaseFile) error {
	if file.ChunkCount > 0 {
		base, err := k.service.GetBase(ctx, file.KnowledgeBaseId)
		if err != nil {
			return err
		}
		store, err := k.storeFor(base)
		if err != nil {
			return err
		}
		ids := make([]string, file.ChunkCount)
		for i := range ids {
			ids[i] = file.VectorId(i)
		}
		if err := store.Delete(ctx, ids, k.namespaceFor(base)); err != nil {
			return fmt.Errorf("knowledge: deleting vectors of %s failed: %w", file.Filename, err)
		}
	}
	return k.service.DeleteFile(ctx, file.Id)
}

func (k *knowledge) DeleteBase(ctx context.Context, base *internal_entity.KnowledgeBase) error {
	store, err := k.storeFor(base)
	if err != nil {
		k.logger.Warnf("knowledge: store for base %d unavailable, vectors left behind: %v", base.Id, err)
	} else if err := store.DeleteAll(ctx, k.namespaceFor(base)); err != nil {
		k.logger.Errorf("knowledge: wiping vectors of base %d failed: %v", base.Id, err)
	}

	k.mu.Lock()
	delete(k.stores, base.Id)
	k.mu.Unlock()

	return k.service.DeleteBase(ctx, base.Id)
}

// =============================================================================
// Store cache
// =============================================================================

// storeFor resolves the vector store of a base, layering the base's own
// config over the deployment defaults. Stores are cached per base.
func (k *knowledge) storeFor(base *internal_entity.KnowledgeBase) (internal_vectorstore.VectorStore, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if store, ok := k.stores[base.Id]; ok {
		return store, nil
	}

	provider := base.Provider
	if provider == "" {
		provider = k.vectorStore.Provider
	}
	store, err := internal_vectorstore.NewVectorStore(k.logger, provider, k.optionsFor(provider, base), k.opensearch)
	if err != nil {
		return nil, fmt.Errorf("knowledge: connecting store for base %d failed: %w", base.Id, err)
	}
	k.stores[base.Id] = store
	return store, nil
}

// optionsFor merges deployment credentials with the base's config; the
// base always wins.
func (k *knowledge) optionsFor(provider string, base *internal_entity.KnowledgeBase) utils.Option {
	defaults := utils.Option{}
	switch provider {
	case internal_vectorstore.ProviderOpenSearch:
		if k.vectorStore.Opensearch.Index != "" {
			defaults["index"] = k.vectorStore.Opensearch.Index
		}
	default:
		if k.vectorStore.Pinecone.ApiKey != "" {
			defaults["api_key"] = k.vectorStore.Pinecone.ApiKey
		}
		if k.vectorStore.Pinecone.IndexHost != "" {
			defaults["index_host"] = k.vectorStore.Pinecone.IndexHost
		}
	}
	return defaults.Merge(base.ConfigOption())
}

func (k *knowledge) namespaceFor(base *internal_entity.KnowledgeBase) string {
	return base.ConfigOption().GetStringOr("namespace", "")
}

// warnModelMismatch flags bases indexed with a different embedding
// model; similarity against mixed-model vectors is meaningless.
func (k *knowledge) warnModelMismatch(base *internal_entity.KnowledgeBase) {
	if base.EmbeddingModel != "" && base.EmbeddingModel != k.embedder.Model() {
		k.logger.Warnf("knowledge: base %d was embedded with %s, deployment embeds with %s",
			base.Id, base.EmbeddingModel, k.embedder.Model())
	}
}
