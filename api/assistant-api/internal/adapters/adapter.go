// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_adapter assembles one conversation session from its
// collaborators. Channel handlers resolve the agent and the call row,
// open a streamer for their transport, and hand everything here; the
// returned talker runs the conversation to completion.
package internal_adapter

import (
	"context"

	"github.com/rapidaai/voice/api/assistant-api/config"
	adapter_internal "github.com/rapidaai/voice/api/assistant-api/internal/adapters/internal"
	internal_agent_embedding "github.com/rapidaai/voice/api/assistant-api/internal/agent/embedding"
	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
	internal_agent_knowledge "github.com/rapidaai/voice/api/assistant-api/internal/agent/knowledge"
	internal_agent_tool "github.com/rapidaai/voice/api/assistant-api/internal/agent/tool"
	internal_audio_recorder "github.com/rapidaai/voice/api/assistant-api/internal/audio/recorder"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_service "github.com/rapidaai/voice/api/assistant-api/internal/service"
	internal_transformer "github.com/rapidaai/voice/api/assistant-api/internal/transformer"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
	"github.com/rapidaai/voice/pkg/utils"
)

// TalkerOption configures the session built by GetTalker.
type TalkerOption = adapter_internal.TalkerOption

// WithEndReason sets the reason recorded when the transport closes the
// conversation, e.g. "browser_disconnect" or "twilio_disconnect".
func WithEndReason(reason string) TalkerOption {
	return adapter_internal.WithEndReason(reason)
}

// Talker is one ready-to-run conversation.
type Talker interface {
	// Talk runs the conversation until the transport closes or the agent
	// ends the call. It always finalizes the call row before returning.
	Talk(ctx context.Context) error
}

// GetTalker wires a conversation session for the given agent and call
// over the given streamer: persistence services, tool registry,
// knowledge retrieval, and the recorder when recording is enabled.
// opensearch may be nil when no opensearch-backed knowledge base exists.
func GetTalker(
	ctx context.Context,
	cfg *config.AppConfig,
	logger commons.Logger,
	database connectors.DatabaseConnector,
	redis connectors.RedisConnector,
	opensearch connectors.OpenSearchConnector,
	streamer internal_type.Streamer,
	agent *internal_entity.Agent,
	call *internal_entity.Call,
	opts ...adapter_internal.TalkerOption,
) (Talker, error) {
	functions := internal_service.NewCustomFunctionService(logger, database)
	functionLogs := internal_service.NewFunctionLogService(logger, database)

	services := adapter_internal.Services{
		Calls:       internal_service.NewCallService(logger, database),
		Transcripts: internal_service.NewTranscriptService(logger, database),
		Prompts:     internal_service.NewPromptService(logger, database),
		Tools:       internal_agent_tool.NewToolExecutor(logger, functions, functionLogs),
		Knowledge:   knowledgeRetriever(ctx, cfg, logger, database, redis, opensearch),
	}

	if cfg.RecordingConfig.Enabled {
		recorder, err := internal_audio_recorder.GetAudioRecorder(ctx, logger, utils.Option{})
		if err != nil {
			logger.Warnf("audio recorder unavailable, recording disabled: %v", err)
		} else {
			opts = append([]adapter_internal.TalkerOption{adapter_internal.WithRecorder(recorder)}, opts...)
		}
	}

	requestor, err := adapter_internal.NewVoiceRequestor(logger, cfg, services, streamer, agent, call, opts...)
	if err != nil {
		return nil, err
	}
	return requestor, nil
}

// GetKnowledge assembles the knowledge stack: embedder (with the redis
// query cache) plus the vector-store registry. Sessions use it for
// retrieval, the knowledge api for ingestion and deletion. Nil when the
// embedding provider is not usable.
func GetKnowledge(
	ctx context.Context,
	cfg *config.AppConfig,
	logger commons.Logger,
	database connectors.DatabaseConnector,
	redis connectors.RedisConnector,
	opensearch connectors.OpenSearchConnector,
) internal_agent_knowledge.Knowledge {
	embedder, err := internal_agent_embedding.NewEmbedder(
		ctx,
		logger,
		cfg.KnowledgeConfig.EmbeddingProvider,
		cfg.KnowledgeConfig.EmbeddingModel,
		internal_transformer.NewVaultCredential(map[string]interface{}{
			internal_agent_embedding.CredentialOpenAIKey: cfg.OpenaiApiKey,
			internal_agent_embedding.CredentialCohereKey: cfg.CohereApiKey,
		}),
		redis,
	)
	if err != nil {
		logger.Warnf("embedder unavailable, knowledge features disabled: %v", err)
		return nil
	}
	return internal_agent_knowledge.NewKnowledge(
		logger,
		&cfg.KnowledgeConfig,
		&cfg.VectorStoreConfig,
		internal_service.NewKnowledgeService(logger, database),
		embedder,
		opensearch,
	)
}

// knowledgeRetriever narrows GetKnowledge for the session wiring; a nil
// knowledge stack just disables retrieval, sessions still run.
func knowledgeRetriever(
	ctx context.Context,
	cfg *config.AppConfig,
	logger commons.Logger,
	database connectors.DatabaseConnector,
	redis connectors.RedisConnector,
	opensearch connectors.OpenSearchConnector,
) internal_agent_executor.KnowledgeRetriever {
	if knowledge := GetKnowledge(ctx, cfg, logger, database, redis, opensearch); knowledge != nil {
		return knowledge
	}
	return nil
}
