// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_entity

import (
	"encoding/json"

	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
	"github.com/rapidaai/voice/pkg/utils"
)

// KnowledgeBase points at a vector index. config carries the
// provider-specific connection detail (api_key, index_name, host,
// namespace) so one deployment can talk to several indexes.
type KnowledgeBase struct {
	gorm_model.Audited
	Name           string `json:"name" gorm:"column:name;type:varchar(200);not null"`
	Provider       string `json:"provider" gorm:"column:provider;type:varchar(50);not null;default:'pinecone'"`
	Config         string `json:"config" gorm:"column:config;type:text;not null;default:'{}'"`
	EmbeddingModel string `json:"embeddingModel" gorm:"column:embedding_model;type:varchar(100);not null;default:''"`
	IsActive       bool   `json:"isActive" gorm:"column:is_active;not null;default:true"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}

// ConfigOption decodes config into the generic option map used by the
// vector store factory.
func (k *KnowledgeBase) ConfigOption() utils.Option {
	opts := utils.Option{}
	if k.Config != "" {
		_ = json.Unmarshal([]byte(k.Config), &opts)
	}
	return opts
}
