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

type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
	CallDirectionBrowser  CallDirection = "browser"
)

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusConnecting CallStatus = "connecting"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// Call is one conversation on any channel. external_call_sid carries the
// provider identifier (Twilio CallSid) for telephony calls and stays empty
// for browser sessions.
type Call struct {
	gorm_model.Audited
	AgentId         uint64        `json:"agentId" gorm:"column:agent_id;type:bigint;not null;index"`
	Direction       CallDirection `json:"direction" gorm:"column:direction;type:varchar(20);not null"`
	CallerNumber    string        `json:"callerNumber" gorm:"column:caller_number;type:varchar(50);not null;default:''"`
	ExternalCallSid string        `json:"externalCallSid" gorm:"column:external_call_sid;type:varchar(100);not null;default:''"`
	Status          CallStatus    `json:"status" gorm:"column:status;type:varchar(20);not null;default:'queued';index"`
	EndReason       string        `json:"endReason" gorm:"column:end_reason;type:varchar(100);not null;default:''"`
	StartedAt       time.Time     `json:"startedAt" gorm:"column:started_at;type:timestamp;not null;default:NOW()"`
	EndedAt         *time.Time    `json:"endedAt" gorm:"column:ended_at;type:timestamp;default:null"`
	DurationSeconds uint64        `json:"durationSeconds" gorm:"column:duration_seconds;type:bigint;not null;default:0"`
}

func (Call) TableName() string {
	return "calls"
}

// CREATE TABLE calls (
//     id BIGINT PRIMARY KEY,
//     created_date TIMESTAMP NOT NULL DEFAULT NOW(),
//     updated_date TIMESTAMP,
//     agent_id BIGINT NOT NULL,
//     direction VARCHAR(20) NOT NULL,
//     caller_number VARCHAR(50) NOT NULL DEFAULT '',
//     external_call_sid VARCHAR(100) NOT NULL DEFAULT '',
//     status VARCHAR(20) NOT NULL DEFAULT 'queued',
//     end_reason VARCHAR(100) NOT NULL DEFAULT '',
//     started_at TIMESTAMP NOT NULL DEFAULT NOW(),
//     ended_at TIMESTAMP,
//     duration_seconds BIGINT NOT NULL DEFAULT 0
// );
