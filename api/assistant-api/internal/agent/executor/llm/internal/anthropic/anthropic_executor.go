// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

// DefaultMaxTokens caps one spoken turn. Voice answers stay short, so a
// small cap keeps latency and cost predictable.
const DefaultMaxTokens = 1024

type anthropicChatModel struct {
	model  string
	logger commons.Logger
	client anthropic.Client
}

// NewAnthropicChatModel creates a completion client for claude models.
func NewAnthropicChatModel(logger commons.Logger, model, apiKey string) (internal_agent_executor.ChatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: missing api key")
	}
	return &anthropicChatModel{
		model:  model,
		logger: logger,
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

func (cm *anthropicChatModel) Name() string {
	return "anthropic"
}

// StreamChat streams one completion. Text deltas go out as they arrive;
// tool_use blocks assemble from partial-json deltas and flush from the
// accumulated message once the stream ends.
func (cm *anthropicChatModel) StreamChat(
	ctx context.Context,
	messages []*internal_type.Message,
	tools []*internal_agent_executor.ToolDefinition,
	emit func(event internal_agent_executor.ChatEvent) error,
) error {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cm.model),
		MaxTokens: DefaultMaxTokens,
		Messages:  toMessageParams(messages),
	}
	if system := headSystemText(messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = toToolParams(tools)
	}

	stream := cm.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			cm.logger.Warnf("anthropic: event accumulation failed: %v", err)
		}
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text == "" {
					continue
				}
				if err := emit(internal_agent_executor.TextDeltaEvent{Text: deltaVariant.Text}); err != nil {
					return err
				}
			}
		}
	}

	streamErr := stream.Err()
	if streamErr == nil {
		if err := cm.flushToolCalls(&message, emit); err != nil {
			return err
		}
	}
	if err := emit(internal_agent_executor.DoneEvent{}); err != nil {
		return err
	}
	return streamErr
}

func (cm *anthropicChatModel) flushToolCalls(
	message *anthropic.Message,
	emit func(event internal_agent_executor.ChatEvent) error,
) error {
	for _, block := range message.Content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		arguments := map[string]interface{}{}
		if raw := toolUse.JSON.Input.Raw(); raw != "" && raw != "null" {
			if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
				cm.logger.Warnf("anthropic: malformed input for tool %s: %v", toolUse.Name, err)
				arguments = map[string]interface{}{}
			}
		}
		if err := emit(internal_agent_executor.ToolCallEvent{Name: toolUse.Name, Arguments: arguments}); err != nil {
			return err
		}
	}
	return nil
}

// headSystemText returns the leading system prompt. Later system entries
// (retrieved knowledge context) stay inline so they keep their position
// next to the user message; toMessageParams maps them to user turns.
func headSystemText(messages []*internal_type.Message) string {
	if len(messages) > 0 && messages[0].Role == internal_type.MessageRoleSystem {
		return messages[0].Content
	}
	return ""
}

func toMessageParams(messages []*internal_type.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for i, message := range messages {
		if i == 0 && message.Role == internal_type.MessageRoleSystem {
			continue
		}
		block := anthropic.NewTextBlock(message.Content)
		if message.Role == internal_type.MessageRoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}

func toToolParams(tools []*internal_agent_executor.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		param := anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: toInputSchema(tool.Parameters),
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out
}

// toInputSchema lifts a JSON schema object into the input_schema param.
// Tool schemas always carry an object root with properties/required.
func toInputSchema(parameters map[string]interface{}) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{}
	if properties, ok := parameters["properties"]; ok {
		schema.Properties = properties
	}
	switch required := parameters["required"].(type) {
	case []string:
		schema.Required = required
	case []interface{}:
		for _, name := range required {
			if s, ok := name.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}
