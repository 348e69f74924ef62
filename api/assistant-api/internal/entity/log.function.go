// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_entity

import (
	"time"

	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
)

type FunctionCallStatus string

const (
	FunctionCallExecuting FunctionCallStatus = "executing"
	FunctionCallCompleted FunctionCallStatus = "completed"
	FunctionCallFailed    FunctionCallStatus = "failed"
)

// FunctionCallLog records one tool invocation. Inserted as executing and
// flipped to completed or failed exactly once; call_id is zero for
// invocations outside a live call.
type FunctionCallLog struct {
	gorm_model.Audited
	CallId       uint64             `json:"callId" gorm:"column:call_id;type:bigint;not null;default:0;index"`
	FunctionName string             `json:"functionName" gorm:"column:function_name;type:varchar(200);not null"`
	Arguments    string             `json:"arguments" gorm:"column:arguments;type:text;not null;default:'{}'"`
	Result       string             `json:"result" gorm:"column:result;type:text;not null;default:''"`
	Status       FunctionCallStatus `json:"status" gorm:"column:status;type:varchar(20);not null;default:'executing'"`
	ErrorMessage string             `json:"errorMessage" gorm:"column:error_message;type:text;not null;default:''"`
	ExecutedAt   time.Time          `json:"executedAt" gorm:"column:executed_at;type:timestamp;not null;default:NOW()"`
}

func (FunctionCallLog) TableName() string {
	return "function_call_logs"
}
