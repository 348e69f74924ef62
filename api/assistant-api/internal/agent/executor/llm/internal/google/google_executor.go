// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

type googleChatModel struct {
	model  string
	logger commons.Logger
	client *genai.Client
}

// NewGoogleChatModel creates a completion client for gemini models.
func NewGoogleChatModel(ctx context.Context, logger commons.Logger, model, apiKey string) (internal_agent_executor.ChatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google: missing api key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: client: %w", err)
	}
	return &googleChatModel{
		model:  model,
		logger: logger,
		client: client,
	}, nil
}

func (cm *googleChatModel) Name() string {
	return "google"
}

// StreamChat streams one completion. Function calls can arrive on any
// chunk, so they accumulate and flush once the stream ends.
func (cm *googleChatModel) StreamChat(
	ctx context.Context,
	messages []*internal_type.Message,
	tools []*internal_agent_executor.ToolDefinition,
	emit func(event internal_agent_executor.ChatEvent) error,
) error {
	config := &genai.GenerateContentConfig{}
	if system := headSystemText(messages); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if len(tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(tools)}}
	}

	var pending []internal_agent_executor.ToolCallEvent
	var streamErr error
	for response, err := range cm.client.Models.GenerateContentStream(ctx, cm.model, toContents(messages), config) {
		if err != nil {
			streamErr = err
			break
		}
		for _, candidate := range response.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					if err := emit(internal_agent_executor.TextDeltaEvent{Text: part.Text}); err != nil {
						return err
					}
				}
				if part.FunctionCall != nil {
					arguments := part.FunctionCall.Args
					if arguments == nil {
						arguments = map[string]interface{}{}
					}
					pending = append(pending, internal_agent_executor.ToolCallEvent{
						Name:      part.FunctionCall.Name,
						Arguments: arguments,
					})
				}
			}
		}
	}

	if streamErr == nil {
		for _, call := range pending {
			if err := emit(call); err != nil {
				return err
			}
		}
	}
	if err := emit(internal_agent_executor.DoneEvent{}); err != nil {
		return err
	}
	return streamErr
}

// headSystemText returns the leading system prompt, delivered through the
// system_instruction slot. Later system entries (retrieved knowledge
// context) stay inline as user turns so they keep their position.
func headSystemText(messages []*internal_type.Message) string {
	if len(messages) > 0 && messages[0].Role == internal_type.MessageRoleSystem {
		return messages[0].Content
	}
	return ""
}

func toContents(messages []*internal_type.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for i, message := range messages {
		if i == 0 && message.Role == internal_type.MessageRoleSystem {
			continue
		}
		role := genai.RoleUser
		if message.Role == internal_type.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: message.Content}},
		})
	}
	return contents
}

func toFunctionDeclarations(tools []*internal_agent_executor.ToolDefinition) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toSchema(tool.Parameters),
		})
	}
	return declarations
}

var schemaTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

// toSchema converts a JSON schema object to the typed schema the API
// wants. Unknown types read as string; unknown fields are dropped.
func toSchema(schema map[string]interface{}) *genai.Schema {
	if len(schema) == 0 {
		return nil
	}
	out := &genai.Schema{}
	if typeName, ok := schema["type"].(string); ok {
		if mapped, ok := schemaTypes[typeName]; ok {
			out.Type = mapped
		} else {
			out.Type = genai.TypeString
		}
	}
	if description, ok := schema["description"].(string); ok {
		out.Description = description
	}
	if properties, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(properties))
		for name, value := range properties {
			if property, ok := value.(map[string]interface{}); ok {
				out.Properties[name] = toSchema(property)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		out.Items = toSchema(items)
	}
	switch required := schema["required"].(type) {
	case []string:
		out.Required = required
	case []interface{}:
		for _, name := range required {
			if s, ok := name.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if enum, ok := schema["enum"].([]interface{}); ok {
		for _, value := range enum {
			if s, ok := value.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	return out
}
