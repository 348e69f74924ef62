// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_service

import (
	"context"
	"fmt"
	"time"

	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

type CallService interface {
	Create(ctx context.Context, call *internal_entity.Call) error
	Get(ctx context.Context, id uint64) (*internal_entity.Call, error)
	GetBySid(ctx context.Context, callSid string) (*internal_entity.Call, error)

	// List returns the most recent calls, newest first.
	List(ctx context.Context, limit int) ([]*internal_entity.Call, error)

	// UpdateStatus moves the call forward. Terminal rows are never
	// rewritten; a late status callback after completion is a no-op.
	UpdateStatus(ctx context.Context, id uint64, status internal_entity.CallStatus) error

	// AttachSid stamps the provider call identifier after the provider
	// accepts an outbound call.
	AttachSid(ctx context.Context, id uint64, callSid string) error

	// Complete finalizes the row: terminal status, end reason, ended_at
	// and whole-second duration.
	Complete(ctx context.Context, id uint64, status internal_entity.CallStatus, reason string, duration uint64) error

	// Delete removes the call and its transcript. The schema carries no
	// foreign keys, so the transcript rows go explicitly.
	Delete(ctx context.Context, id uint64) error
}

type callService struct {
	db     connectors.DatabaseConnector
	logger commons.Logger
}

func NewCallService(logger commons.Logger, db connectors.DatabaseConnector) CallService {
	return &callService{db: db, logger: logger}
}

var terminalCallStatuses = []internal_entity.CallStatus{
	internal_entity.CallStatusCompleted,
	internal_entity.CallStatusFailed,
}

func (s *callService) Create(ctx context.Context, call *internal_entity.Call) error {
	if call.Status == "" {
		call.Status = internal_entity.CallStatusQueued
	}
	if call.StartedAt.IsZero() {
		call.StartedAt = time.Now()
	}
	if err := s.db.DB(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}
	s.logger.Infof("created call: id=%d, agent=%d, direction=%s", call.Id, call.AgentId, call.Direction)
	return nil
}

func (s *callService) Get(ctx context.Context, id uint64) (*internal_entity.Call, error) {
	var call internal_entity.Call
	if err := s.db.DB(ctx).Where("id = ?", id).First(&call).Error; err != nil {
		return nil, fmt.Errorf("call %d not found: %w", id, err)
	}
	return &call, nil
}

func (s *callService) GetBySid(ctx context.Context, callSid string) (*internal_entity.Call, error) {
	var call internal_entity.Call
	if err := s.db.DB(ctx).Where("external_call_sid = ?", callSid).First(&call).Error; err != nil {
		return nil, fmt.Errorf("call with sid %s not found: %w", callSid, err)
	}
	return &call, nil
}

const maxCallListSize = 100

func (s *callService) List(ctx context.Context, limit int) ([]*internal_entity.Call, error) {
	if limit <= 0 || limit > maxCallListSize {
		limit = maxCallListSize
	}
	var calls []*internal_entity.Call
	err := s.db.DB(ctx).
		Order("started_at desc, id desc").
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	return calls, nil
}

func (s *callService) UpdateStatus(ctx context.Context, id uint64, status internal_entity.CallStatus) error {
	result := s.db.DB(ctx).Model(&internal_entity.Call{}).
		Where("id = ? AND status NOT IN ?", id, terminalCallStatuses).
		Updates(map[string]interface{}{
			"status":       status,
			"updated_date": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update call %d status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debugf("call %d already terminal, status %s dropped", id, status)
	}
	return nil
}

func (s *callService) AttachSid(ctx context.Context, id uint64, callSid string) error {
	result := s.db.DB(ctx).Model(&internal_entity.Call{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"external_call_sid": callSid,
			"updated_date":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to attach sid to call %d: %w", id, result.Error)
	}
	return nil
}

func (s *callService) Complete(ctx context.Context, id uint64, status internal_entity.CallStatus, reason string, duration uint64) error {
	if !status.IsTerminal() {
		status = internal_entity.CallStatusCompleted
	}
	now := time.Now()
	result := s.db.DB(ctx).Model(&internal_entity.Call{}).
		Where("id = ? AND status NOT IN ?", id, terminalCallStatuses).
		Updates(map[string]interface{}{
			"status":           status,
			"end_reason":       reason,
			"ended_at":         now,
			"duration_seconds": duration,
			"updated_date":     now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete call %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debugf("call %d already terminal, completion dropped", id)
	}
	return nil
}

func (s *callService) Delete(ctx context.Context, id uint64) error {
	if err := s.db.DB(ctx).Where("call_id = ?", id).
		Delete(&internal_entity.TranscriptEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete transcript for call %d: %w", id, err)
	}
	if err := s.db.DB(ctx).Where("id = ?", id).
		Delete(&internal_entity.Call{}).Error; err != nil {
		return fmt.Errorf("failed to delete call %d: %w", id, err)
	}
	return nil
}
