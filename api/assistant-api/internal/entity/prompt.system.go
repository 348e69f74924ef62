// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_entity

import (
	"encoding/json"

	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
)

// SystemPrompt is a reusable pongo2 prompt template. variables holds the
// default render context as JSON.
type SystemPrompt struct {
	gorm_model.Audited
	Name      string `json:"name" gorm:"column:name;type:varchar(200);not null;uniqueIndex"`
	Content   string `json:"content" gorm:"column:content;type:text;not null"`
	Variables string `json:"variables" gorm:"column:variables;type:text;not null;default:'{}'"`
	IsActive  bool   `json:"isActive" gorm:"column:is_active;not null;default:true"`
}

func (SystemPrompt) TableName() string {
	return "system_prompts"
}

func (p *SystemPrompt) DefaultVariables() map[string]interface{} {
	vars := map[string]interface{}{}
	if p.Variables != "" {
		_ = json.Unmarshal([]byte(p.Variables), &vars)
	}
	return vars
}
