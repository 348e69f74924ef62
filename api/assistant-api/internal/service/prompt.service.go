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
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	"github.com/rapidaai/voice/pkg/commons"
	"github.com/rapidaai/voice/pkg/connectors"
)

// PromptService renders system prompts at session start. An agent's
// system_prompt may either be the template source itself or name a stored
// SystemPrompt row; both render through pongo2 with the agent metadata
// and the call-time variables in scope.
type PromptService interface {
	// Resolve produces the final system prompt for one session. Render
	// failures fall back to the raw prompt text so a bad template never
	// blocks a call.
	Resolve(ctx context.Context, agent *internal_entity.Agent, vars map[string]interface{}) string

	// Render executes one pongo2 template source.
	Render(content string, vars map[string]interface{}) (string, error)

	GetByName(ctx context.Context, name string) (*internal_entity.SystemPrompt, error)
}

type promptService struct {
	db     connectors.DatabaseConnector
	logger commons.Logger
}

func NewPromptService(logger commons.Logger, db connectors.DatabaseConnector) PromptService {
	return &promptService{db: db, logger: logger}
}

func (s *promptService) GetByName(ctx context.Context, name string) (*internal_entity.SystemPrompt, error) {
	var prompt internal_entity.SystemPrompt
	if err := s.db.DB(ctx).Where("name = ? AND is_active = ?", name, true).First(&prompt).Error; err != nil {
		return nil, fmt.Errorf("system prompt %s not found: %w", name, err)
	}
	return &prompt, nil
}

func (s *promptService) Resolve(ctx context.Context, agent *internal_entity.Agent, vars map[string]interface{}) string {
	content := agent.SystemPrompt
	merged := map[string]interface{}{
		"agent_name":   agent.Name,
		"language":     agent.Language,
		"current_date": time.Now().Format("January 2, 2006"),
		"current_time": time.Now().Format("3:04 PM"),
	}

	// A short single-token prompt may name a stored template.
	if len(content) <= 200 && !strings.ContainsAny(content, " \n{") {
		if template, err := s.GetByName(ctx, content); err == nil {
			content = template.Content
			for k, v := range template.DefaultVariables() {
				merged[k] = v
			}
		}
	}

	if agent.Metadata != "" {
		metadata := map[string]interface{}{}
		if err := json.Unmarshal([]byte(agent.Metadata), &metadata); err == nil {
			for k, v := range metadata {
				merged[k] = v
			}
		}
	}
	for k, v := range vars {
		merged[k] = v
	}

	rendered, err := s.Render(content, merged)
	if err != nil {
		s.logger.Warnf("prompt render failed for agent %d, using raw prompt: %v", agent.Id, err)
		return content
	}
	return rendered
}

func (s *promptService) Render(content string, vars map[string]interface{}) (string, error) {
	template, err := pongo2.FromString(content)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}
	rendered, err := template.Execute(pongo2.Context(vars))
	if err != nil {
		return "", fmt.Errorf("rendering prompt template: %w", err)
	}
	return rendered, nil
}
