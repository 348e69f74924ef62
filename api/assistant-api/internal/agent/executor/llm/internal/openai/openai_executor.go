// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

type openaiChatModel struct {
	name   string
	model  string
	logger commons.Logger
	client openai.Client
}

// NewOpenAIChatModel creates a completion client for an OpenAI-compatible
// host. name tells the hosts apart in logs (openai, deepseek, groq); an
// empty baseUrl targets api.openai.com.
func NewOpenAIChatModel(logger commons.Logger, name, model, apiKey, baseUrl string) (internal_agent_executor.ChatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: missing api key", name)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseUrl != "" {
		opts = append(opts, option.WithBaseURL(baseUrl))
	}
	return &openaiChatModel{
		name:   name,
		model:  model,
		logger: logger,
		client: openai.NewClient(opts...),
	}, nil
}

func (cm *openaiChatModel) Name() string {
	return cm.name
}

// StreamChat streams one completion. Text deltas go out as they arrive;
// tool calls assemble across chunks and flush after the stream ends.
func (cm *openaiChatModel) StreamChat(
	ctx context.Context,
	messages []*internal_type.Message,
	tools []*internal_agent_executor.ToolDefinition,
	emit func(event internal_agent_executor.ChatEvent) error,
) error {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(cm.model),
		Messages: cm.toChatMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = cm.toChatTools(tools)
	}

	stream := cm.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := emit(internal_agent_executor.TextDeltaEvent{Text: delta}); err != nil {
				return err
			}
		}
		if chunk.Choices[0].FinishReason != "" {
			break
		}
	}

	// Tool call arguments stream in fragments; only the accumulated view
	// is complete once the provider is done.
	if err := cm.flushToolCalls(&acc, emit); err != nil {
		return err
	}
	if err := emit(internal_agent_executor.DoneEvent{}); err != nil {
		return err
	}
	return stream.Err()
}

func (cm *openaiChatModel) flushToolCalls(
	acc *openai.ChatCompletionAccumulator,
	emit func(event internal_agent_executor.ChatEvent) error,
) error {
	if len(acc.Choices) == 0 {
		return nil
	}
	for _, call := range acc.Choices[0].Message.ToolCalls {
		if call.Function.Name == "" {
			continue
		}
		arguments := map[string]interface{}{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &arguments); err != nil {
				cm.logger.Warnf("%s: malformed arguments for tool %s: %v", cm.name, call.Function.Name, err)
				arguments = map[string]interface{}{}
			}
		}
		if err := emit(internal_agent_executor.ToolCallEvent{Name: call.Function.Name, Arguments: arguments}); err != nil {
			return err
		}
	}
	return nil
}

func (cm *openaiChatModel) toChatMessages(messages []*internal_type.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case internal_type.MessageRoleSystem:
			out = append(out, openai.SystemMessage(message.Content))
		case internal_type.MessageRoleAssistant:
			out = append(out, openai.AssistantMessage(message.Content))
		default:
			out = append(out, openai.UserMessage(message.Content))
		}
	}
	return out
}

func (cm *openaiChatModel) toChatTools(tools []*internal_agent_executor.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Parameters),
			},
		})
	}
	return out
}
