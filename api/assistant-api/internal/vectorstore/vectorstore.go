// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_vectorstore abstracts the vector indexes behind the
// knowledge bases. A store instance is scoped to one index; the
// namespace argument partitions tenants inside it. Stores connect
// lazily, so constructing one never touches the network.
package internal_vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
	"github.com/rapidaai/voice/pkg/utils"
)

// Provider names accepted by the factory.
const (
	ProviderPinecone   = "pinecone"
	ProviderOpenSearch = "opensearch"
)

// Vector is one embedded chunk heading into an index.
type Vector struct {
	Id       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Match is one retrieval hit. Text is the chunk body lifted out of the
// metadata for convenience; Metadata keeps everything the index stored.
type Match struct {
	Id       string
	Score    float32
	Text     string
	Metadata map[string]interface{}
}

// VectorStore is one connected vector index.
type VectorStore interface {
	Name() string

	// Upsert writes vectors in batches. Existing ids are overwritten.
	Upsert(ctx context.Context, vectors []*Vector, namespace string) error

	// Query returns the topK nearest matches for the embedding.
	Query(ctx context.Context, embedding []float32, topK int, namespace string) ([]*Match, error)

	// Delete removes the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string, namespace string) error

	// DeleteAll removes every vector in the namespace.
	DeleteAll(ctx context.Context, namespace string) error
}

// NewVectorStore builds the store for a knowledge base. option carries
// the provider connection detail, deployment defaults already merged
// under the knowledge base's own config. The opensearch connector is
// only required for the opensearch provider.
func NewVectorStore(
	logger commons.Logger,
	provider string,
	option utils.Option,
	opensearch connectors.OpenSearchConnector,
) (VectorStore, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderPinecone, "":
		return NewPineconeStore(logger, option)
	case ProviderOpenSearch:
		if opensearch == nil {
			return nil, fmt.Errorf("vectorstore: opensearch connector is not configured")
		}
		return NewOpenSearchStore(logger, opensearch, option)
	default:
		return nil, fmt.Errorf("vectorstore: unsupported provider %q", provider)
	}
}
