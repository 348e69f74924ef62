// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package knowledge_api manages knowledge bases and their files. File
// uploads are acknowledged immediately and ingested in the background;
// the file row carries the pipeline status.
package knowledge_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rapidaai/voice/api/assistant-api/config"
	internal_adapter "github.com/rapidaai/voice/api/assistant-api/internal/adapters"
	internal_agent_knowledge "github.com/rapidaai/voice/api/assistant-api/internal/agent/knowledge"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_service "github.com/rapidaai/voice/api/assistant-api/internal/service"
	internal_vectorstore "github.com/rapidaai/voice/api/assistant-api/internal/vectorstore"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
	"github.com/rapidaai/voice/pkg/utils"
)

const maxUploadBytes = 50 << 20

// ingestTimeout bounds one background ingestion run end to end.
const ingestTimeout = 10 * time.Minute

type KnowledgeApi struct {
	cfg    *config.AppConfig
	logger commons.Logger

	service   internal_service.KnowledgeService
	knowledge internal_agent_knowledge.Knowledge
}

// NewKnowledgeApi wires the knowledge surface. knowledge stays nil when
// no embedding provider is configured; uploads are then refused while
// row management keeps working.
func NewKnowledgeApi(
	ctx context.Context,
	cfg *config.AppConfig,
	logger commons.Logger,
	database connectors.DatabaseConnector,
	redis connectors.RedisConnector,
	opensearch connectors.OpenSearchConnector,
) *KnowledgeApi {
	return &KnowledgeApi{
		cfg:       cfg,
		logger:    logger,
		service:   internal_service.NewKnowledgeService(logger, database),
		knowledge: internal_adapter.GetKnowledge(ctx, cfg, logger, database, redis, opensearch),
	}
}

// ============================================================================
// Knowledge bases
// ============================================================================

type baseSummary struct {
	*internal_entity.KnowledgeBase
	FileCount int64 `json:"fileCount"`
}

// ListBases returns every knowledge base with its file count.
//
// @Router /api/v1/knowledge [get]
// @Success 200 {array} baseSummary
func (kApi *KnowledgeApi) ListBases(c *gin.Context) {
	ctx := c.Request.Context()
	bases, err := kApi.service.ListBases(ctx)
	if err != nil {
		kApi.logger.Errorf("listing knowledge bases failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list knowledge bases"})
		return
	}

	summaries := make([]baseSummary, 0, len(bases))
	for _, base := range bases {
		count, err := kApi.service.CountFiles(ctx, base.Id)
		if err != nil {
			kApi.logger.Warnf("counting files of base %d failed: %v", base.Id, err)
		}
		summaries = append(summaries, baseSummary{KnowledgeBase: base, FileCount: count})
	}
	c.JSON(http.StatusOK, summaries)
}

// GetBase returns one knowledge base.
//
// @Router /api/v1/knowledge/{id} [get]
// @Success 200 {object} internal_entity.KnowledgeBase
func (kApi *KnowledgeApi) GetBase(c *gin.Context) {
	baseId, ok := pathId(c, "id")
	if !ok {
		return
	}
	base, err := kApi.service.GetBase(c.Request.Context(), baseId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "knowledge base not found"})
		return
	}
	c.JSON(http.StatusOK, base)
}

type createBaseRequest struct {
	Name           string                 `json:"name" binding:"required"`
	Provider       string                 `json:"provider"`
	Config         map[string]interface{} `json:"config"`
	EmbeddingModel string                 `json:"embeddingModel"`
	IsActive       *bool                  `json:"isActive"`
}

// CreateBase registers a vector index as a knowledge base.
//
// @Router /api/v1/knowledge [post]
// @Success 200 {object} internal_entity.KnowledgeBase
func (kApi *KnowledgeApi) CreateBase(c *gin.Context) {
	var request createBaseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	provider := request.Provider
	if provider == "" {
		provider = internal_vectorstore.ProviderPinecone
	}
	baseConfig := "{}"
	if len(request.Config) > 0 {
		raw, err := json.Marshal(request.Config)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "config must be a json object"})
			return
		}
		baseConfig = string(raw)
	}
	active := true
	if request.IsActive != nil {
		active = *request.IsActive
	}

	base := &internal_entity.KnowledgeBase{
		Name:           request.Name,
		Provider:       provider,
		Config:         baseConfig,
		EmbeddingModel: request.EmbeddingModel,
		IsActive:       active,
	}
	if err := kApi.service.CreateBase(c.Request.Context(), base); err != nil {
		kApi.logger.Errorf("creating knowledge base failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create knowledge base"})
		return
	}
	c.JSON(http.StatusOK, base)
}

type updateBaseRequest struct {
	Name           *string                `json:"name"`
	Provider       *string                `json:"provider"`
	Config         map[string]interface{} `json:"config"`
	EmbeddingModel *string                `json:"embeddingModel"`
	IsActive       *bool                  `json:"isActive"`
}

// UpdateBase applies a partial update; absent fields keep their value.
//
// @Router /api/v1/knowledge/{id} [put]
// @Success 200 {object} internal_entity.KnowledgeBase
func (kApi *KnowledgeApi) UpdateBase(c *gin.Context) {
	baseId, ok := pathId(c, "id")
	if !ok {
		return
	}
	var request updateBaseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	fields := map[string]interface{}{}
	if request.Name != nil {
		fields["name"] = *request.Name
	}
	if request.Provider != nil {
		fields["provider"] = *request.Provider
	}
	if request.Config != nil {
		raw, err := json.Marshal(request.Config)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "config must be a json object"})
			return
		}
		fields["config"] = string(raw)
	}
	if request.EmbeddingModel != nil {
		fields["embedding_model"] = *request.EmbeddingModel
	}
	if request.IsActive != nil {
		fields["is_active"] = *request.IsActive
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	base, err := kApi.service.UpdateBase(c.Request.Context(), baseId, fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "knowledge base not found"})
			return
		}
		kApi.logger.Errorf("updating knowledge base %d failed: %v", baseId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update knowledge base"})
		return
	}
	c.JSON(http.StatusOK, base)
}

// DeleteBase removes the base, its file rows and, best effort, its
// vectors. Deleting a missing base succeeds.
//
// @Router /api/v1/knowledge/{id} [delete]
// @Success 200 {object} gin.H
func (kApi *KnowledgeApi) DeleteBase(c *gin.Context) {
	baseId, ok := pathId(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	base, err := kApi.service.GetBase(ctx, baseId)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"deleted": true})
		return
	}

	if kApi.knowledge == nil {
		kApi.logger.Warnf("no embedding provider, vectors of base %d left behind", baseId)
		err = kApi.service.DeleteBase(ctx, baseId)
	} else {
		err = kApi.knowledge.DeleteBase(ctx, base)
	}
	if err != nil {
		kApi.logger.Errorf("deleting knowledge base %d failed: %v", baseId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete knowledge base"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ============================================================================
// Files
// ============================================================================

// UploadFile accepts a multipart upload, creates the pending file row
// and hands the content to the ingestion pipeline in the background.
// Poll the file list for the outcome.
//
// @Router /api/v1/knowledge/{id}/files [post]
// @Success 202 {object} internal_entity.KnowledgeBaseFile
func (kApi *KnowledgeApi) UploadFile(c *gin.Context) {
	baseId, ok := pathId(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	base, err := kApi.service.GetBase(ctx, baseId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "knowledge base not found"})
		return
	}
	if kApi.knowledge == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "knowledge ingestion is not configured"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if !internal_agent_knowledge.SupportedFileType(fileHeader.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unsupported file type, allowed: txt, md, text, markdown, csv",
		})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large, max %dMB", maxUploadBytes/(1024*1024)),
		})
		return
	}

	reader, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer reader.Close()
	content, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}

	file := &internal_entity.KnowledgeBaseFile{
		KnowledgeBaseId: base.Id,
		Filename:        fileHeader.Filename,
		FileType:        strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), "."),
		FileSize:        uint64(len(content)),
		Status:          internal_entity.KnowledgeFilePending,
	}
	if err := kApi.service.CreateFile(ctx, file); err != nil {
		kApi.logger.Errorf("creating knowledge file row failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create file record"})
		return
	}

	// The request context dies with the response; ingestion runs on its
	// own clock.
	utils.Go(context.Background(), func() {
		ingestCtx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		if err := kApi.knowledge.ProcessFile(ingestCtx, file, content); err != nil {
			kApi.logger.Errorf("ingesting %s into base %d failed: %v", file.Filename, base.Id, err)
		}
	})

	c.JSON(http.StatusAccepted, file)
}

// ListFiles returns the base's files, newest first.
//
// @Router /api/v1/knowledge/{id}/files [get]
// @Success 200 {array} internal_entity.KnowledgeBaseFile
func (kApi *KnowledgeApi) ListFiles(c *gin.Context) {
	baseId, ok := pathId(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := kApi.service.GetBase(ctx, baseId); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "knowledge base not found"})
		return
	}
	files, err := kApi.service.ListFiles(ctx, baseId)
	if err != nil {
		kApi.logger.Errorf("listing files of base %d failed: %v", baseId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}
	c.JSON(http.StatusOK, files)
}

// DeleteFile removes a file's vectors and its row. Deleting a missing
// file succeeds.
//
// @Router /api/v1/knowledge/{id}/files/{fileId} [delete]
// @Success 200 {object} gin.H
func (kApi *KnowledgeApi) DeleteFile(c *gin.Context) {
	baseId, ok := pathId(c, "id")
	if !ok {
		return
	}
	fileId, ok := pathId(c, "fileId")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	file, err := kApi.service.GetFile(ctx, fileId)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"deleted": true})
		return
	}
	if file.KnowledgeBaseId != baseId {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	if kApi.knowledge == nil {
		kApi.logger.Warnf("no embedding provider, vectors of file %d left behind", fileId)
		err = kApi.service.DeleteFile(ctx, fileId)
	} else {
		err = kApi.knowledge.DeleteFile(ctx, file)
	}
	if err != nil {
		kApi.logger.Errorf("deleting knowledge file %d failed: %v", fileId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func pathId(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return id, true
}
