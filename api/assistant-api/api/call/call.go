// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package call_api serves call history: the dashboard reads recent
// calls and their transcripts here after the realtime session is gone.
package call_api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	internal_service "github.com/rapidaai/voice/api/assistant-api/internal/service"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

type CallApi struct {
	logger commons.Logger

	calls       internal_service.CallService
	transcripts internal_service.TranscriptService
}

func NewCallApi(logger commons.Logger, database connectors.DatabaseConnector) *CallApi {
	return &CallApi{
		logger:      logger,
		calls:       internal_service.NewCallService(logger, database),
		transcripts: internal_service.NewTranscriptService(logger, database),
	}
}

// List returns the most recent calls, newest first.
//
// @Router /api/v1/calls [get]
// @Success 200 {array} internal_entity.Call
func (cApi *CallApi) List(c *gin.Context) {
	calls, err := cApi.calls.List(c.Request.Context(), 100)
	if err != nil {
		cApi.logger.Errorf("listing calls failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list calls"})
		return
	}
	c.JSON(http.StatusOK, calls)
}

// Get returns a single call row.
//
// @Router /api/v1/calls/{callId} [get]
// @Success 200 {object} internal_entity.Call
func (cApi *CallApi) Get(c *gin.Context) {
	callId, ok := pathCallId(c)
	if !ok {
		return
	}
	call, err := cApi.calls.Get(c.Request.Context(), callId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	c.JSON(http.StatusOK, call)
}

// Transcript returns the call transcript in spoken order.
//
// @Router /api/v1/calls/{callId}/transcript [get]
// @Success 200 {array} internal_entity.TranscriptEntry
func (cApi *CallApi) Transcript(c *gin.Context) {
	callId, ok := pathCallId(c)
	if !ok {
		return
	}
	entries, err := cApi.transcripts.History(c.Request.Context(), callId)
	if err != nil {
		cApi.logger.Errorf("loading transcript for call %d failed: %v", callId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transcript"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Delete removes a call and its transcript. Deleting a call that does
// not exist succeeds; the endpoint is idempotent.
//
// @Router /api/v1/calls/{callId} [delete]
// @Success 200 {object} gin.H
func (cApi *CallApi) Delete(c *gin.Context) {
	callId, ok := pathCallId(c)
	if !ok {
		return
	}
	if err := cApi.calls.Delete(c.Request.Context(), callId); err != nil {
		cApi.logger.Errorf("deleting call %d failed: %v", callId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete call"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func pathCallId(c *gin.Context) (uint64, bool) {
	callId, err := strconv.ParseUint(c.Param("callId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return 0, false
	}
	return callId, true
}
