// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

type CustomFunctionService interface {
	GetByName(ctx context.Context, name string) (*internal_entity.CustomFunction, error)

	// GetActiveByNames returns active webhook functions in the order the
	// names were requested. Unknown names are skipped, not errors.
	GetActiveByNames(ctx context.Context, names []string) ([]*internal_entity.CustomFunction, error)
}

// FunctionLogService records tool invocations. Every invocation is
// inserted as executing and flipped to completed or failed exactly once.
// Failures here are logged by callers and never abort the voice pipeline.
type FunctionLogService interface {
	Begin(ctx context.Context, callId uint64, name string, arguments map[string]interface{}) (*internal_entity.FunctionCallLog, error)
	Complete(ctx context.Context, id uint64, result string) error
	Fail(ctx context.Context, id uint64, errorMessage string) error
}

type customFunctionService struct {
	db     connectors.DatabaseConnector
	logger commons.Logger
}

func NewCustomFunctionService(logger commons.Logger, db connectors.DatabaseConnector) CustomFunctionService {
	return &customFunctionService{db: db, logger: logger}
}

func (s *customFunctionService) GetByName(ctx context.Context, name string) (*internal_entity.CustomFunction, error) {
	var fn internal_entity.CustomFunction
	if err := s.db.DB(ctx).Where("name = ? AND is_active = ?", name, true).First(&fn).Error; err != nil {
		return nil, fmt.Errorf("custom function %s not found: %w", name, err)
	}
	return &fn, nil
}

func (s *customFunctionService) GetActiveByNames(ctx context.Context, names []string) ([]*internal_entity.CustomFunction, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var rows []*internal_entity.CustomFunction
	err := s.db.DB(ctx).
		Where("name IN ? AND is_active = ?", names, true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load custom functions: %w", err)
	}

	byName := make(map[string]*internal_entity.CustomFunction, len(rows))
	for _, fn := range rows {
		byName[fn.Name] = fn
	}
	ordered := make([]*internal_entity.CustomFunction, 0, len(rows))
	for _, name := range names {
		if fn, ok := byName[name]; ok {
			ordered = append(ordered, fn)
		}
	}
	return ordered, nil
}

type functionLogService struct {
	db     connectors.DatabaseConnector
	logger commons.Logger
}

func NewFunctionLogService(logger commons.Logger, db connectors.DatabaseConnector) FunctionLogService {
	return &functionLogService{db: db, logger: logger}
}

func (s *functionLogService) Begin(ctx context.Context, callId uint64, name string, arguments map[string]interface{}) (*internal_entity.FunctionCallLog, error) {
	args := "{}"
	if len(arguments) > 0 {
		if encoded, err := json.Marshal(arguments); err == nil {
			args = string(encoded)
		}
	}
	row := &internal_entity.FunctionCallLog{
		CallId:       callId,
		FunctionName: name,
		Arguments:    args,
		Status:       internal_entity.FunctionCallExecuting,
		ExecutedAt:   time.Now(),
	}
	if err := s.db.DB(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to log invocation of %s: %w", name, err)
	}
	return row, nil
}

func (s *functionLogService) Complete(ctx context.Context, id uint64, result string) error {
	return s.finish(ctx, id, internal_entity.FunctionCallCompleted, map[string]interface{}{
		"result": result,
	})
}

func (s *functionLogService) Fail(ctx context.Context, id uint64, errorMessage string) error {
	return s.finish(ctx, id, internal_entity.FunctionCallFailed, map[string]interface{}{
		"error_message": errorMessage,
	})
}

func (s *functionLogService) finish(ctx context.Context, id uint64, status internal_entity.FunctionCallStatus, fields map[string]interface{}) error {
	fields["status"] = status
	fields["updated_date"] = time.Now()
	result := s.db.DB(ctx).Model(&internal_entity.FunctionCallLog{}).
		Where("id = ? AND status = ?", id, internal_entity.FunctionCallExecuting).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to finish function log %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debugf("function log %d already finished", id)
	}
	return nil
}
