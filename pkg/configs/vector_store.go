// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package configs

type PineconeConfig struct {
	ApiKey    string `mapstructure:"api_key"`
	IndexHost string `mapstructure:"index_host"`
}

type OpensearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Index     string `mapstructure:"index"`
}

// VectorStoreConfig selects the vector backend for knowledge
// retrieval. Provider is pinecone or opensearch.
type VectorStoreConfig struct {
	Provider   string           `mapstructure:"provider" validate:"required,oneof=pinecone opensearch"`
	Pinecone   PineconeConfig   `mapstructure:"pinecone"`
	Opensearch OpensearchConfig `mapstructure:"opensearch"`
}
