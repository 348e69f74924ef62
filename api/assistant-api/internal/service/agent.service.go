// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_service is the persistence layer between the session
// orchestrator, the HTTP surface and the entity models.
package internal_service

import (
	"context"
	"fmt"

	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/configs"
	"github.com/rapidaai/voice/pkg/connectors"
)

// Fallback definition used when no agent row resolves. Sessions never
// fail for lack of configuration.
const (
	DefaultAgentName         = "Assistant"
	DefaultAgentSystemPrompt = "You are a helpful voice AI assistant. Keep responses concise and conversational."
	DefaultAgentModel        = "gpt-4"
)

type AgentService interface {
	// Get returns the agent row whether active or not.
	Get(ctx context.Context, id uint64) (*internal_entity.Agent, error)

	// GetOrDefault resolves an agent for a session: the requested row when
	// it exists and is active, otherwise the built-in default. Never nil.
	GetOrDefault(ctx context.Context, id uint64) *internal_entity.Agent

	// FirstActive returns the oldest active agent.
	FirstActive(ctx context.Context) (*internal_entity.Agent, error)

	// ResolveInbound picks the agent for an inbound call: the assignment of
	// the called number when one exists, else the first active agent, else
	// the default. Never nil.
	ResolveInbound(ctx context.Context, calledNumber string) *internal_entity.Agent

	Create(ctx context.Context, agent *internal_entity.Agent) error
}

type agentService struct {
	db     connectors.DatabaseConnector
	speech *configs.SpeechConfig
	logger commons.Logger
}

func NewAgentService(logger commons.Logger, db connectors.DatabaseConnector, speech *configs.SpeechConfig) AgentService {
	return &agentService{db: db, speech: speech, logger: logger}
}

func (s *agentService) Get(ctx context.Context, id uint64) (*internal_entity.Agent, error) {
	var agent internal_entity.Agent
	if err := s.db.DB(ctx).Where("id = ?", id).First(&agent).Error; err != nil {
		return nil, fmt.Errorf("agent %d not found: %w", id, err)
	}
	return &agent, nil
}

func (s *agentService) GetOrDefault(ctx context.Context, id uint64) *internal_entity.Agent {
	if id != 0 {
		agent, err := s.Get(ctx, id)
		if err == nil && agent.IsActive {
			return agent
		}
		s.logger.Warnf("agent %d not usable, falling back to default: %v", id, err)
	}
	return s.defaultAgent()
}

func (s *agentService) FirstActive(ctx context.Context) (*internal_entity.Agent, error) {
	var agent internal_entity.Agent
	if err := s.db.DB(ctx).Where("is_active = ?", true).Order("id asc").First(&agent).Error; err != nil {
		return nil, fmt.Errorf("no active agent: %w", err)
	}
	return &agent, nil
}

func (s *agentService) ResolveInbound(ctx context.Context, calledNumber string) *internal_entity.Agent {
	if calledNumber != "" {
		var number internal_entity.PhoneNumber
		err := s.db.DB(ctx).
			Where("number = ? AND is_active = ?", calledNumber, true).
			First(&number).Error
		if err == nil && number.AgentId != 0 {
			if agent, err := s.Get(ctx, number.AgentId); err == nil && agent.IsActive {
				return agent
			}
		}
	}

	if agent, err := s.FirstActive(ctx); err == nil {
		return agent
	}
	s.logger.Warnf("no agent mapped for %s, using default", calledNumber)
	return s.defaultAgent()
}

func (s *agentService) Create(ctx context.Context, agent *internal_entity.Agent) error {
	if err := s.db.DB(ctx).Create(agent).Error; err != nil {
		return fmt.Errorf("failed to create agent %s: %w", agent.Name, err)
	}
	return nil
}

func (s *agentService) defaultAgent() *internal_entity.Agent {
	voice := "21m00Tcm4TlvDq8ikWAM"
	language := "en-US"
	if s.speech != nil {
		if s.speech.DefaultVoice != "" {
			voice = s.speech.DefaultVoice
		}
		if s.speech.DefaultLanguage != "" {
			language = s.speech.DefaultLanguage
		}
	}
	return &internal_entity.Agent{
		Name:         DefaultAgentName,
		SystemPrompt: DefaultAgentSystemPrompt,
		VoiceId:      voice,
		Language:     language,
		LlmModel:     DefaultAgentModel,
		IsActive:     true,
	}
}
