// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_entity holds the persisted records for the voice
// service. All models embed gorm_model.Audited and keep JSON payload
// columns as text; typed accessors decode them on demand.
package internal_entity

import (
	"encoding/json"

	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
)

// Agent is a voice assistant definition. A session snapshots the agent at
// start; edits never affect calls already in progress.
type Agent struct {
	gorm_model.Audited
	Name            string `json:"name" gorm:"column:name;type:varchar(200);not null"`
	SystemPrompt    string `json:"systemPrompt" gorm:"column:system_prompt;type:text;not null;default:''"`
	VoiceId         string `json:"voiceId" gorm:"column:voice_id;type:varchar(100);not null;default:''"`
	Language        string `json:"language" gorm:"column:language;type:varchar(20);not null;default:'en-US'"`
	LlmModel        string `json:"llmModel" gorm:"column:llm_model;type:varchar(100);not null;default:'gpt-4'"`
	ToolsEnabled    string `json:"toolsEnabled" gorm:"column:tools_enabled;type:text;not null;default:'[]'"`
	KnowledgeBaseId uint64 `json:"knowledgeBaseId" gorm:"column:knowledge_base_id;type:bigint;not null;default:0"`
	Metadata        string `json:"metadata" gorm:"column:metadata;type:text;not null;default:'{}'"`
	IsActive        bool   `json:"isActive" gorm:"column:is_active;not null;default:true"`
}

func (Agent) TableName() string {
	return "agents"
}

// EnabledTools decodes the ordered tool name list. A malformed column
// reads as no tools rather than failing the session.
func (a *Agent) EnabledTools() []string {
	if a.ToolsEnabled == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(a.ToolsEnabled), &names); err != nil {
		return nil
	}
	return names
}

// CREATE TABLE agents (
//     id BIGINT PRIMARY KEY,
//     created_date TIMESTAMP NOT NULL DEFAULT NOW(),
//     updated_date TIMESTAMP,
//     name VARCHAR(200) NOT NULL,
//     system_prompt TEXT NOT NULL DEFAULT '',
//     voice_id VARCHAR(100) NOT NULL DEFAULT '',
//     language VARCHAR(20) NOT NULL DEFAULT 'en-US',
//     llm_model VARCHAR(100) NOT NULL DEFAULT 'gpt-4',
//     tools_enabled TEXT NOT NULL DEFAULT '[]',
//     knowledge_base_id BIGINT NOT NULL DEFAULT 0,
//     metadata TEXT NOT NULL DEFAULT '{}',
//     is_active BOOLEAN NOT NULL DEFAULT TRUE
// );
