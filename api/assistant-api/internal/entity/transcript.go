// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_entity

import (
	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
)

const (
	TranscriptRoleUser      = "user"
	TranscriptRoleAssistant = "assistant"
	TranscriptRoleSystem    = "system"
)

// TranscriptEntry is one finalized utterance of a call. Rows are
// append-only; created_date orders the conversation.
type TranscriptEntry struct {
	gorm_model.Audited
	CallId  uint64 `json:"callId" gorm:"column:call_id;type:bigint;not null;index"`
	Role    string `json:"role" gorm:"column:role;type:varchar(20);not null"`
	Content string `json:"content" gorm:"column:content;type:text;not null"`
}

func (TranscriptEntry) TableName() string {
	return "transcript_entries"
}
