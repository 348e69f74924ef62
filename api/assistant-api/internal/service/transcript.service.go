// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_service

import (
	"context"
	"fmt"
	"strings"

	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

type TranscriptService interface {
	// Append persists one finalized utterance. Blank content is dropped
	// so interim noise never lands in the transcript.
	Append(ctx context.Context, callId uint64, role, content string) error

	// History returns the call transcript in spoken order.
	History(ctx context.Context, callId uint64) ([]*internal_entity.TranscriptEntry, error)
}

type transcriptService struct {
	db     connectors.DatabaseConnector
	logger commons.Logger
}

func NewTranscriptService(logger commons.Logger, db connectors.DatabaseConnector) TranscriptService {
	return &transcriptService{db: db, logger: logger}
}

func (s *transcriptService) Append(ctx context.Context, callId uint64, role, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	entry := &internal_entity.TranscriptEntry{
		CallId:  callId,
		Role:    role,
		Content: content,
	}
	if err := s.db.DB(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append transcript for call %d: %w", callId, err)
	}
	return nil
}

func (s *transcriptService) History(ctx context.Context, callId uint64) ([]*internal_entity.TranscriptEntry, error) {
	var entries []*internal_entity.TranscriptEntry
	err := s.db.DB(ctx).
		Where("call_id = ?", callId).
		Order("created_date asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript for call %d: %w", callId, err)
	}
	return entries, nil
}
