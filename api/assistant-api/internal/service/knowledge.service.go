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
	"gorm.io/gorm"
)

type KnowledgeService interface {
	GetBase(ctx context.Context, id uint64) (*internal_entity.KnowledgeBase, error)

	// GetActiveBase returns the base only when it exists and is active;
	// retrieval silently skips on error.
	GetActiveBase(ctx context.Context, id uint64) (*internal_entity.KnowledgeBase, error)

	// ListBases returns every knowledge base, newest first.
	ListBases(ctx context.Context) ([]*internal_entity.KnowledgeBase, error)
	CreateBase(ctx context.Context, base *internal_entity.KnowledgeBase) error

	// UpdateBase applies the given columns and returns the fresh row.
	UpdateBase(ctx context.Context, id uint64, fields map[string]interface{}) (*internal_entity.KnowledgeBase, error)

	// DeleteBase removes the base and its file rows. Vector cleanup is
	// the knowledge layer's job.
	DeleteBase(ctx context.Context, id uint64) error

	// CountFiles reports how many files a base carries.
	CountFiles(ctx context.Context, baseId uint64) (int64, error)

	CreateFile(ctx context.Context, file *internal_entity.KnowledgeBaseFile) error
	GetFile(ctx context.Context, id uint64) (*internal_entity.KnowledgeBaseFile, error)
	ListFiles(ctx context.Context, baseId uint64) ([]*internal_entity.KnowledgeBaseFile, error)

	MarkFileProcessing(ctx context.Context, id uint64) error
	MarkFileCompleted(ctx context.Context, id uint64, chunkCount uint32) error
	MarkFileFailed(ctx context.Context, id uint64, errorMessage string) error

	DeleteFile(ctx context.Context, id uint64) error
}

type knowledgeService struct {
	db     connectors.DatabaseConnector
	logger commons.Logger
}

func NewKnowledgeService(logger commons.Logger, db connectors.DatabaseConnector) KnowledgeService {
	return &knowledgeService{db: db, logger: logger}
}

func (s *knowledgeService) GetBase(ctx context.Context, id uint64) (*internal_entity.KnowledgeBase, error) {
	var base internal_entity.KnowledgeBase
	if err := s.db.DB(ctx).Where("id = ?", id).First(&base).Error; err != nil {
		return nil, fmt.Errorf("knowledge base %d not found: %w", id, err)
	}
	return &base, nil
}

func (s *knowledgeService) GetActiveBase(ctx context.Context, id uint64) (*internal_entity.KnowledgeBase, error) {
	base, err := s.GetBase(ctx, id)
	if err != nil {
		return nil, err
	}
	if !base.IsActive {
		return nil, fmt.Errorf("knowledge base %d is inactive", id)
	}
	return base, nil
}

func (s *knowledgeService) ListBases(ctx context.Context) ([]*internal_entity.KnowledgeBase, error) {
	var bases []*internal_entity.KnowledgeBase
	if err := s.db.DB(ctx).Order("created_date desc").Find(&bases).Error; err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	return bases, nil
}

func (s *knowledgeService) CreateBase(ctx context.Context, base *internal_entity.KnowledgeBase) error {
	if err := s.db.DB(ctx).Create(base).Error; err != nil {
		return fmt.Errorf("failed to create knowledge base %s: %w", base.Name, err)
	}
	return nil
}

func (s *knowledgeService) UpdateBase(ctx context.Context, id uint64, fields map[string]interface{}) (*internal_entity.KnowledgeBase, error) {
	fields["updated_date"] = time.Now()
	result := s.db.DB(ctx).Model(&internal_entity.KnowledgeBase{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update knowledge base %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("knowledge base %d not found: %w", id, gorm.ErrRecordNotFound)
	}
	return s.GetBase(ctx, id)
}

func (s *knowledgeService) DeleteBase(ctx context.Context, id uint64) error {
	if err := s.db.DB(ctx).Where("knowledge_base_id = ?", id).
		Delete(&internal_entity.KnowledgeBaseFile{}).Error; err != nil {
		return fmt.Errorf("failed to delete files of knowledge base %d: %w", id, err)
	}
	if err := s.db.DB(ctx).Where("id = ?", id).Delete(&internal_entity.KnowledgeBase{}).Error; err != nil {
		return fmt.Errorf("failed to delete knowledge base %d: %w", id, err)
	}
	return nil
}

func (s *knowledgeService) CountFiles(ctx context.Context, baseId uint64) (int64, error) {
	var count int64
	err := s.db.DB(ctx).Model(&internal_entity.KnowledgeBaseFile{}).
		Where("knowledge_base_id = ?", baseId).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count files for base %d: %w", baseId, err)
	}
	return count, nil
}

func (s *knowledgeService) CreateFile(ctx context.Context, file *internal_entity.KnowledgeBaseFile) error {
	if file.Status == "" {
		file.Status = internal_entity.KnowledgeFilePending
	}
	if err := s.db.DB(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("failed to create knowledge file %s: %w", file.Filename, err)
	}
	return nil
}

func (s *knowledgeService) GetFile(ctx context.Context, id uint64) (*internal_entity.KnowledgeBaseFile, error) {
	var file internal_entity.KnowledgeBaseFile
	if err := s.db.DB(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		return nil, fmt.Errorf("knowledge file %d not found: %w", id, err)
	}
	return &file, nil
}

func (s *knowledgeService) ListFiles(ctx context.Context, baseId uint64) ([]*internal_entity.KnowledgeBaseFile, error) {
	var files []*internal_entity.KnowledgeBaseFile
	err := s.db.DB(ctx).
		Where("knowledge_base_id = ?", baseId).
		Order("created_date desc").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge files for base %d: %w", baseId, err)
	}
	return files, nil
}

func (s *knowledgeService) MarkFileProcessing(ctx context.Context, id uint64) error {
	return s.updateFile(ctx, id, map[string]interface{}{
		"status": internal_entity.KnowledgeFileProcessing,
	})
}

func (s *knowledgeService) MarkFileCompleted(ctx context.Context, id uint64, chunkCount uint32) error {
	return s.updateFile(ctx, id, map[string]interface{}{
		"status":      internal_entity.KnowledgeFileCompleted,
		"chunk_count": chunkCount,
	})
}

func (s *knowledgeService) MarkFileFailed(ctx context.Context, id uint64, errorMessage string) error {
	return s.updateFile(ctx, id, map[string]interface{}{
		"status":        internal_entity.KnowledgeFileFailed,
		"error_message": errorMessage,
	})
}

func (s *knowledgeService) DeleteFile(ctx context.Context, id uint64) error {
	if err := s.db.DB(ctx).Where("id = ?", id).Delete(&internal_entity.KnowledgeBaseFile{}).Error; err != nil {
		return fmt.Errorf("failed to delete knowledge file %d: %w", id, err)
	}
	return nil
}

func (s *knowledgeService) updateFile(ctx context.Context, id uint64, fields map[string]interface{}) error {
	fields["updated_date"] = time.Now()
	result := s.db.DB(ctx).Model(&internal_entity.KnowledgeBaseFile{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update knowledge file %d: %w", id, result.Error)
	}
	return nil
}
