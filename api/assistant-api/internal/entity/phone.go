// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_entity

import (
	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
)

// PhoneNumber routes an inbound E.164 number to an agent. agent_id zero
// means unassigned; inbound resolution then falls back to the first
// active agent.
type PhoneNumber struct {
	gorm_model.Audited
	Number   string `json:"number" gorm:"column:number;type:varchar(50);not null;uniqueIndex"`
	AgentId  uint64 `json:"agentId" gorm:"column:agent_id;type:bigint;not null;default:0"`
	IsActive bool   `json:"isActive" gorm:"column:is_active;not null;default:true"`
}

func (PhoneNumber) TableName() string {
	return "phone_numbers"
}
