// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package internal_agent_tool resolves an agent's enabled tool names to
// schemas and routes invocations to the built-in handlers or the webhook
// caller. Every invocation is journalled through the function log
// service; a failed journal write never blocks the tool itself.
package internal_agent_tool

import (
	"context"
	"encoding/json"
	"fmt"

	internal_agent_executor "github.com/rapidaai/voice/api/assistant-api/internal/agent/executor"
	internal_agent_local_tool "github.com/rapidaai/voice/api/assistant-api/internal/agent/tool/local"
	internal_agent_webhook_tool "github.com/rapidaai/voice/api/assistant-api/internal/agent/tool/webhook"
	internal_entity "github.com/rapidaai/voice/api/assistant-api/internal/entity"
	internal_service "github.com/rapidaai/voice/api/assistant-api/internal/service"
	internal_type "github.com/rapidaai/voice/api/assistant-api/internal/type"
	"github.com/rapidaai/voice/pkg/commons"
)

// recentTranscriptDepth bounds how much history rides on webhook bodies.
const recentTranscriptDepth = 6

type toolRegistry struct {
	logger    commons.Logger
	functions internal_service.CustomFunctionService
	logs      internal_service.FunctionLogService
	webhook   internal_agent_webhook_tool.Caller
}

// NewToolExecutor wires the built-in registry and the webhook caller
// behind the executor's tool interface.
func NewToolExecutor(
	logger commons.Logger,
	functions internal_service.CustomFunctionService,
	logs internal_service.FunctionLogService,
) internal_agent_executor.ToolExecutor {
	return &toolRegistry{
		logger:    logger,
		functions: functions,
		logs:      logs,
		webhook:   internal_agent_webhook_tool.NewWebhookCaller(logger),
	}
}

// Definitions resolves enabled names to schemas in the declared order.
// Built-ins win over a custom function of the same name; names matching
// neither are dropped.
func (registry *toolRegistry) Definitions(ctx context.Context, names []string) []*internal_agent_executor.ToolDefinition {
	custom := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := internal_agent_local_tool.Lookup(name); !ok {
			custom = append(custom, name)
		}
	}

	functions := map[string]*internal_entity.CustomFunction{}
	if len(custom) > 0 && registry.functions != nil {
		rows, err := registry.functions.GetActiveByNames(ctx, custom)
		if err != nil {
			registry.logger.Warnf("tool registry: loading custom functions failed: %v", err)
		}
		for _, row := range rows {
			functions[row.Name] = row
		}
	}

	definitions := make([]*internal_agent_executor.ToolDefinition, 0, len(names))
	for _, name := range names {
		if caller, ok := internal_agent_local_tool.Lookup(name); ok {
			definitions = append(definitions, caller.Definition())
			continue
		}
		if function, ok := functions[name]; ok {
			definitions = append(definitions, &internal_agent_executor.ToolDefinition{
				Name:                 function.Name,
				Description:          function.Description,
				Parameters:           function.ParameterSchema(),
				SpeakDuringExecution: function.SpeakDuringExecution,
			})
		}
	}
	return definitions
}

// Execute runs one invocation and journals it. Failures come back inside
// the result under "error"; webhook functions may add a
// "_speak_on_failure" line for the session to voice.
func (registry *toolRegistry) Execute(
	ctx context.Context,
	communication internal_type.Communication,
	name string,
	arguments map[string]interface{},
) map[string]interface{} {
	var callId uint64
	if call := communication.Conversation(); call != nil {
		callId = call.Id
	}

	var logId uint64
	if registry.logs != nil {
		if row, err := registry.logs.Begin(ctx, callId, name, arguments); err != nil {
			registry.logger.Warnf("tool registry: journalling %s failed: %v", name, err)
		} else {
			logId = row.Id
		}
	}

	result, speakOnFailure, err := registry.run(ctx, communication, name, arguments)
	if err != nil {
		registry.logger.Errorf("tool registry: %s failed: %v", name, err)
		failure := map[string]interface{}{"error": err.Error()}
		if speakOnFailure != "" {
			failure["_speak_on_failure"] = speakOnFailure
		}
		registry.finish(ctx, logId, "", err)
		return failure
	}

	encoded, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		encoded = []byte("{}")
	}
	registry.finish(ctx, logId, string(encoded), nil)
	return result
}

// run dispatches to a built-in or the named custom function. The second
// return is the configured failure line, set only for webhook failures.
func (registry *toolRegistry) run(
	ctx context.Context,
	communication internal_type.Communication,
	name string,
	arguments map[string]interface{},
) (map[string]interface{}, string, error) {
	if caller, ok := internal_agent_local_tool.Lookup(name); ok {
		result, err := caller.Call(ctx, arguments)
		return result, "", err
	}

	if registry.functions == nil {
		return nil, "", fmt.Errorf("Unknown function: %s", name)
	}
	function, err := registry.functions.GetByName(ctx, name)
	if err != nil {
		return nil, "", fmt.Errorf("Unknown function: %s", name)
	}

	var callContext map[string]interface{}
	if function.PayloadMode == internal_entity.PayloadModeFullContext {
		callContext = buildCallContext(communication)
	}

	result, err := registry.webhook.Call(ctx, function, arguments, callContext)
	if err != nil {
		return nil, function.SpeakOnFailure, err
	}
	return result, "", nil
}

func (registry *toolRegistry) finish(ctx context.Context, logId uint64, result string, err error) {
	if registry.logs == nil || logId == 0 {
		return
	}
	if err != nil {
		if logErr := registry.logs.Fail(ctx, logId, err.Error()); logErr != nil {
			registry.logger.Warnf("tool registry: closing journal %d failed: %v", logId, logErr)
		}
		return
	}
	if logErr := registry.logs.Complete(ctx, logId, result); logErr != nil {
		registry.logger.Warnf("tool registry: closing journal %d failed: %v", logId, logErr)
	}
}

// buildCallContext assembles the _call_context block for full-context
// webhooks: the call id plus recent user/assistant turns.
func buildCallContext(communication internal_type.Communication) map[string]interface{} {
	callContext := map[string]interface{}{}
	if call := communication.Conversation(); call != nil && call.Id > 0 {
		callContext["call_id"] = call.Id
	}

	logs := communication.GetConversationLogs()
	start := len(logs) - recentTranscriptDepth
	if start < 0 {
		start = 0
	}
	recent := make([]string, 0, recentTranscriptDepth)
	for _, message := range logs[start:] {
		if message.Role == internal_type.MessageRoleUser || message.Role == internal_type.MessageRoleAssistant {
			recent = append(recent, message.Content)
		}
	}
	if len(recent) > 0 {
		callContext["recent_transcript"] = recent
	}
	return callContext
}
