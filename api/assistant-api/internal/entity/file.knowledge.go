// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_entity

import (
	"fmt"

	gorm_model "github.com/rapidaai/voice/pkg/models/gorm"
)

type KnowledgeFileStatus string

const (
	KnowledgeFilePending    KnowledgeFileStatus = "pending"
	KnowledgeFileProcessing KnowledgeFileStatus = "processing"
	KnowledgeFileCompleted  KnowledgeFileStatus = "completed"
	KnowledgeFileFailed     KnowledgeFileStatus = "failed"
)

// KnowledgeBaseFile tracks one ingested document.
type KnowledgeBaseFile struct {
	gorm_model.Audited
	KnowledgeBaseId uint64              `json:"knowledgeBaseId" gorm:"column:knowledge_base_id;type:bigint;not null;index"`
	Filename        string              `json:"filename" gorm:"column:filename;type:varchar(500);not null"`
	FileType        string              `json:"fileType" gorm:"column:file_type;type:varchar(50);not null;default:''"`
	FileSize        uint64              `json:"fileSize" gorm:"column:file_size;type:bigint;not null;default:0"`
	ChunkCount      uint32              `json:"chunkCount" gorm:"column:chunk_count;type:int;not null;default:0"`
	Status          KnowledgeFileStatus `json:"status" gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	ErrorMessage    string              `json:"errorMessage" gorm:"column:error_message;type:text;not null;default:''"`
}

func (KnowledgeBaseFile) TableName() string {
	return "knowledge_base_files"
}

// VectorId names the vector for one chunk. Deletion iterates the same
// scheme, so ids must stay stable across re-ingestion.
func (f *KnowledgeBaseFile) VectorId(chunkIndex int) string {
	return fmt.Sprintf("%d_%d", f.Id, chunkIndex)
}
