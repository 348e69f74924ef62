// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package configs

// KnowledgeConfig tunes retrieval and ingestion. Embedding provider is
// openai or cohere.
type KnowledgeConfig struct {
	EmbeddingProvider string `mapstructure:"embedding_provider" validate:"required,oneof=openai cohere"`
	EmbeddingModel    string `mapstructure:"embedding_model"`
	ChunkSize         int    `mapstructure:"chunk_size"`
	ChunkOverlap      int    `mapstructure:"chunk_overlap"`
	RetrievalTopK     int    `mapstructure:"retrieval_top_k"`
}
